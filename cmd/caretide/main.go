package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/caretide/caretide/internal/api"
	"github.com/caretide/caretide/internal/cli"
	"github.com/caretide/caretide/internal/config"
	"github.com/caretide/caretide/internal/cron"
	"github.com/caretide/caretide/internal/engine"
	"github.com/caretide/caretide/internal/store"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

// App holds the application components
type App struct {
	config     *config.Config
	store      *store.Store
	engine     *engine.Engine
	logger     *zap.Logger
	cronRunner *cron.Runner
}

func main() {
	// Handle subcommands before flag parsing
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "dashboard":
			handleDashboardCommand(os.Args[2:])
			return
		case "report":
			handleReportCommand(os.Args[2:])
			return
		case "status":
			handleStatusCommand()
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "version", "--version", "-v":
			fmt.Printf("CareTide version %s\n", version)
			return
		case "serve":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}

	flag.Parse()

	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting CareTide", zap.String("version", version))

	// Load configuration
	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Initialize data store
	st, err := store.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	eng := engine.New(cfg.EngineConfig(), nil, logger)

	app := &App{
		config: cfg,
		store:  st,
		engine: eng,
		logger: logger,
	}

	app.runServer()
}

func (app *App) runServer() {
	// Start scheduled jobs (trend scan, cache sweep)
	if app.config.Jobs.Enabled {
		app.cronRunner = cron.NewRunner(app.config.Jobs, app.engine, app.store, app.logger)
		if err := app.cronRunner.Start(); err != nil {
			app.logger.Error("Failed to start job runner", zap.Error(err))
		}
	}

	// Initialize and start API server
	server := api.New(app.config, app.store, app.engine, app.logger)

	go func() {
		if err := server.Start(); err != nil {
			app.logger.Fatal("Server error", zap.Error(err))
		}
	}()

	app.logger.Info("Server started",
		zap.String("address", app.config.Server.Address),
		zap.Int("port", app.config.Server.Port),
		zap.String("url", fmt.Sprintf("http://localhost:%d", app.config.Server.Port)),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.logger.Info("Shutting down...")

	if app.cronRunner != nil {
		app.cronRunner.Stop()
	}

	if err := server.Shutdown(); err != nil {
		app.logger.Error("Server shutdown error", zap.Error(err))
	}
}

// openLocal loads config and store for one-shot subcommands. The logger is a
// nop so command output stays clean for piping.
func openLocal(configPath, dataDir string) (*App, error) {
	cfg, err := config.Load(configPath, dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	st, err := store.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logger := zap.NewNop()
	return &App{
		config: cfg,
		store:  st,
		engine: engine.New(cfg.EngineConfig(), nil, logger),
		logger: logger,
	}, nil
}

func handleDashboardCommand(args []string) {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to config file")
	data := fs.String("data", "", "Path to data directory")
	fs.Parse(args)

	app, err := openLocal(*cfgPath, *data)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer app.store.Close()

	now := time.Now()
	items, err := app.todayItems(now)
	if err != nil {
		fmt.Printf("Error loading items: %v\n", err)
		os.Exit(1)
	}

	dash, err := app.engine.AssembleDashboard(items, now)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(cli.RenderDashboard(dash))
}

func handleReportCommand(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to config file")
	data := fs.String("data", "", "Path to data directory")
	days := fs.Int("days", 7, "Days to cover")
	format := fs.String("format", "text", "Output format: text, json, or yaml")
	fs.Parse(args)

	if *days < 1 || *days > 90 {
		fmt.Println("Error: -days must be between 1 and 90")
		os.Exit(1)
	}

	app, err := openLocal(*cfgPath, *data)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer app.store.Close()

	report, err := app.buildReport(time.Now(), *days)
	if err != nil {
		fmt.Printf("Error building report: %v\n", err)
		os.Exit(1)
	}

	out, err := cli.RenderReport(report, *format)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(out)
}

func handleStatusCommand() {
	cfg, err := config.Load("", "")
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("CareTide Status")
	fmt.Println("===============")
	fmt.Println()
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Data:    %s\n", cfg.Storage.DataDir)
	fmt.Println()
	fmt.Println("Server Configuration:")
	fmt.Printf("  Address: %s:%d\n", cfg.Server.Address, cfg.Server.Port)
	fmt.Printf("  URL: http://localhost:%d\n", cfg.Server.Port)
	fmt.Println()
	fmt.Println("Jobs:")
	fmt.Printf("  Trend scan:  %s\n", cfg.Jobs.RedFlagScanCron)
	fmt.Printf("  Cache sweep: %s\n", cfg.Jobs.CacheSweepCron)
}

func (app *App) todayItems(now time.Time) ([]engine.ScheduledItem, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	rows, err := app.store.ItemsBetween(dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return store.EngineItems(rows), nil
}

func (app *App) buildReport(now time.Time, days int) (*engine.ReportData, error) {
	in, err := app.store.ReportInput(now, days)
	if err != nil {
		return nil, err
	}
	return app.engine.BuildReport(in)
}

func printHelp() {
	fmt.Println(`CareTide - Care Timeline & Adherence Engine

Usage:
  caretide [flags]              Start the server (default)
  caretide serve [flags]        Start the server
  caretide dashboard            Show the current dashboard state
  caretide report [flags]       Build a care report
  caretide status               Show configuration summary
  caretide version              Show version
  caretide help                 Show this help

Flags:
  -config string   Path to config file
  -data string     Path to data directory

Report flags:
  -days int        Days to cover, 1-90 (default 7)
  -format string   Output format: text, json, or yaml (default "text")

Environment:
  CARETIDE_SERVER_PORT           Override the listen port
  CARETIDE_SECURITY_JWT_SECRET   Override the JWT signing secret`)
}

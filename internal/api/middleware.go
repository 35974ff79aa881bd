package api

import (
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

func (s *Server) authMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth == "" {
			return c.Status(401).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenString := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(s.config.Security.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if sub, ok := claims["sub"].(string); ok {
				c.Locals("caregiver", sub)
			}
		}

		return c.Next()
	}
}

// rateLimitMiddleware keeps one token bucket per client IP. Buckets are never
// evicted; a single-family deployment sees a handful of IPs.
func (s *Server) rateLimitMiddleware() fiber.Handler {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	perSecond := rate.Limit(s.config.Server.RateLimit)
	if perSecond <= 0 {
		perSecond = rate.Inf
	}

	return func(c *fiber.Ctx) error {
		mu.Lock()
		lim, ok := limiters[c.IP()]
		if !ok {
			lim = rate.NewLimiter(perSecond, s.config.Server.RateLimit*2)
			limiters[c.IP()] = lim
		}
		mu.Unlock()

		if !lim.Allow() {
			return c.Status(429).JSON(fiber.Map{"error": "too many requests"})
		}
		return c.Next()
	}
}

// caregiverName returns the authenticated caregiver, falling back to the
// admin account for tokens issued before subjects were recorded.
func caregiverName(c *fiber.Ctx) string {
	if name, ok := c.Locals("caregiver").(string); ok && name != "" {
		return name
	}
	return "admin"
}

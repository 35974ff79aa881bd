package engine

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// DetectRedFlags scans daily samples for trends worth surfacing. Two kinds of
// flags come out:
//
//   - decline: a metric's value strictly decreased on each of the most recent
//     TrendMinRun (default 3) or more consecutive days. Two days are never
//     enough; that is one-off noise.
//   - out-of-range: a vital metric classified abnormal on the most recent
//     TrendMinRun or more consecutive days. Severity is high when any sample
//     in the run breaches the wide band, medium otherwise.
//
// Each flag carries its contributing samples in date order.
func (e *Engine) DetectRedFlags(samples []DailySample) []RedFlag {
	series := groupByMetric(samples)

	metrics := make([]string, 0, len(series))
	for m := range series {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	var flags []RedFlag
	for _, metric := range metrics {
		s := series[metric]
		if f, ok := e.declineFlag(metric, s); ok {
			flags = append(flags, f)
		}
		if f, ok := e.outOfRangeFlag(metric, s); ok {
			flags = append(flags, f)
		}
	}

	if len(flags) > 0 {
		e.logger.Info("red flags detected", zap.Int("count", len(flags)))
	}
	return flags
}

// declineFlag checks the most-recent run of strictly decreasing values on
// consecutive days.
func (e *Engine) declineFlag(metric string, samples []DailySample) (RedFlag, bool) {
	if len(samples) == 0 {
		return RedFlag{}, false
	}
	run := 1
	for i := len(samples) - 1; i > 0; i-- {
		if !consecutiveDays(samples[i-1].Day, samples[i].Day) {
			break
		}
		if samples[i].Value >= samples[i-1].Value {
			break
		}
		run++
	}
	if run < e.cfg.TrendMinRun {
		return RedFlag{}, false
	}
	evidence := samples[len(samples)-run:]
	return RedFlag{
		Category: metric,
		Severity: SeverityMedium,
		Evidence: append([]DailySample(nil), evidence...),
	}, true
}

// outOfRangeFlag checks the most-recent run of consecutive abnormal days for
// vital metrics.
func (e *Engine) outOfRangeFlag(metric string, samples []DailySample) (RedFlag, bool) {
	kind, ok := vitalKindOf(metric)
	if !ok {
		return RedFlag{}, false
	}

	run := 0
	for i := len(samples) - 1; i >= 0; i-- {
		if ClassifyVital(kind, samples[i].Value, samples[i].Secondary) != RangeAbnormal {
			break
		}
		if run > 0 && !consecutiveDays(samples[i].Day, samples[i+1].Day) {
			break
		}
		run++
	}
	if run < e.cfg.TrendMinRun {
		return RedFlag{}, false
	}

	evidence := samples[len(samples)-run:]
	severity := SeverityMedium
	for _, s := range evidence {
		if breachesWideBand(kind, s.Value, s.Secondary) {
			severity = SeverityHigh
			break
		}
	}
	return RedFlag{
		Category: metric,
		Severity: severity,
		Evidence: append([]DailySample(nil), evidence...),
	}, true
}

func groupByMetric(samples []DailySample) map[string][]DailySample {
	series := make(map[string][]DailySample)
	for _, s := range samples {
		series[s.Metric] = append(series[s.Metric], s)
	}
	for m := range series {
		s := series[m]
		sort.SliceStable(s, func(i, j int) bool { return s[i].Day.Before(s[j].Day) })
		series[m] = s
	}
	return series
}

func consecutiveDays(earlier, later time.Time) bool {
	return sameDay(earlier.AddDate(0, 0, 1), later)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

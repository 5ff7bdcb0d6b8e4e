package session

import (
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/scanwedge/internal/scanner"
)

// statsWindow is how many recent scans the latency figures cover.
const statsWindow = 256

// Stats aggregates typing latency over recent scans.
type Stats struct {
	mu        sync.Mutex
	emitMs    []float64
	runes     []float64
	total     int
	byReason  map[scanner.FinalizeReason]int
	lastScan  time.Time
	emitFails int
}

// StatsSummary is a point-in-time view of Stats.
type StatsSummary struct {
	Scans           int     `json:"scans"`
	ByTerminator    int     `json:"by_terminator"`
	ByTimeout       int     `json:"by_timeout"`
	EmitFailures    int     `json:"emit_failures"`
	MeanEmitMs      float64 `json:"mean_emit_ms"`
	StdDevEmitMs    float64 `json:"stddev_emit_ms"`
	P95EmitMs       float64 `json:"p95_emit_ms"`
	MeanCodePoints  float64 `json:"mean_code_points"`
	MsPerCodePoint  float64 `json:"ms_per_code_point"`
	LastScanRFC3339 string  `json:"last_scan,omitempty"`
}

// NewStats returns empty stats.
func NewStats() *Stats {
	return &Stats{byReason: make(map[scanner.FinalizeReason]int)}
}

// Record adds one typed scan.
func (s *Stats) Record(res ScanResult, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.byReason[res.Reason]++
	s.lastScan = res.At
	if failed {
		s.emitFails++
	}
	s.emitMs = appendWindow(s.emitMs, float64(res.EmitDuration)/float64(time.Millisecond))
	s.runes = appendWindow(s.runes, float64(len(res.CodePoints)))
}

func appendWindow(xs []float64, x float64) []float64 {
	xs = append(xs, x)
	if len(xs) > statsWindow {
		xs = xs[len(xs)-statsWindow:]
	}
	return xs
}

// Summary computes the current figures.
func (s *Stats) Summary() StatsSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := StatsSummary{
		Scans:        s.total,
		ByTerminator: s.byReason[scanner.FinalizedByTerminator],
		ByTimeout:    s.byReason[scanner.FinalizedByTimeout],
		EmitFailures: s.emitFails,
	}
	if !s.lastScan.IsZero() {
		sum.LastScanRFC3339 = s.lastScan.Format(time.RFC3339Nano)
	}
	if len(s.emitMs) == 0 {
		return sum
	}

	sum.MeanEmitMs = stat.Mean(s.emitMs, nil)
	if len(s.emitMs) > 1 {
		sum.StdDevEmitMs = stat.StdDev(s.emitMs, nil)
	}
	sorted := slices.Clone(s.emitMs)
	slices.Sort(sorted)
	sum.P95EmitMs = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	sum.MeanCodePoints = stat.Mean(s.runes, nil)

	var totalRunes, totalMs float64
	for i := range s.runes {
		totalRunes += s.runes[i]
		totalMs += s.emitMs[i]
	}
	if totalRunes > 0 {
		sum.MsPerCodePoint = totalMs / totalRunes
	}
	return sum
}

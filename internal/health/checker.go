// Package health tracks whether the server's backing stores are reachable.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(name string, success bool)

// Result is the latest outcome for one probe.
type Result struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Failures  int       `json:"consecutive_failures"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs registered probes and remembers their results. A dependency
// is degraded once it fails FailThreshold checks in a row.
type Checker struct {
	mu        sync.RWMutex
	probes    map[string]Probe
	results   map[string]Result
	cfg       Config
	onMetrics MetricsRecordFunc
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a new Checker.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{
		probes:  make(map[string]Probe),
		results: make(map[string]Result),
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// Register adds a named probe. Registering a name twice replaces the probe.
func (h *Checker) Register(name string, p Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = p
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start checks immediately, then every CheckInterval until ctx is done.
func (h *Checker) Start(ctx context.Context) {
	h.CheckAll(ctx)

	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll runs every probe concurrently and returns the updated results
// sorted by name.
func (h *Checker) CheckAll(ctx context.Context) []Result {
	h.mu.RLock()
	probes := make(map[string]Probe, len(h.probes))
	for name, p := range h.probes {
		probes[name] = p
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for name, p := range probes {
		wg.Add(1)
		go func(name string, p Probe) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
			err := p(pctx)
			cancel()
			h.record(name, err)
		}(name, p)
	}
	wg.Wait()

	_, results := h.Ready()
	return results
}

func (h *Checker) record(name string, err error) {
	if h.onMetrics != nil {
		h.onMetrics(name, err == nil)
	}

	h.mu.Lock()
	prev := h.results[name]
	res := Result{Name: name, CheckedAt: h.now().UTC()}
	if err == nil {
		res.Healthy = true
	} else {
		res.Failures = prev.Failures + 1
		res.Healthy = res.Failures < h.cfg.FailThreshold
		res.Error = err.Error()
	}
	h.results[name] = res
	h.mu.Unlock()

	switch {
	case err == nil && prev.Failures >= h.cfg.FailThreshold:
		h.logger.Info("health: recovered", zap.String("dependency", name))
	case err != nil && res.Failures == h.cfg.FailThreshold:
		// Logged once, exactly at the threshold.
		h.logger.Warn("health: degraded",
			zap.String("dependency", name),
			zap.Int("fail_count", res.Failures),
			zap.Error(err),
		)
	}
}

// Ready reports whether every registered probe has been checked and is
// healthy, along with the current results sorted by name.
func (h *Checker) Ready() (bool, []Result) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ready := true
	results := make([]Result, 0, len(h.probes))
	for name := range h.probes {
		res, ok := h.results[name]
		if !ok {
			res = Result{Name: name, Error: "not checked yet"}
		}
		if !res.Healthy {
			ready = false
		}
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return ready, results
}

/*
scheduler.go - Automated state snapshot scheduler

PURPOSE:
  Periodically replays every employee at "today" under the active policy
  and stores the result in state_snapshots. Snapshots are a cache for
  dashboards and the tier headcount gauge; the engine stays the source of
  truth and any API read replays again.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - One failing employee is logged and skipped, the rest still refresh

CONFIGURATION:
  - Interval: How often to refresh (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSnapshotScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RefreshSnapshots endpoint (manual refresh)
  - metrics/metrics.go: employees_by_tier gauge
*/
package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/generic"
	"github.com/warp/points-engine/store/sqlite"
)

// SnapshotScheduler refreshes state snapshots on a ticker.
type SnapshotScheduler struct {
	Handler  *Handler
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSnapshotScheduler creates a new scheduler.
func NewSnapshotScheduler(h *Handler) *SnapshotScheduler {
	return &SnapshotScheduler{
		Handler:  h,
		Interval: 1 * time.Hour,
		Enabled:  true,
	}
}

// Start begins the scheduler.
func (s *SnapshotScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.Handler.Logger
	if !s.Enabled || s.Interval <= 0 {
		logger.Info("[Scheduler] Disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	logger.Info("[Scheduler] Started", "interval", s.Interval.String())
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (s *SnapshotScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Handler.Logger.Info("[Scheduler] Stopped")
	}
}

func (s *SnapshotScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow()

	for {
		select {
		case <-s.ticker.C:
			s.RunNow()
		case <-s.stop:
			return
		}
	}
}

// RunNow triggers an immediate refresh (for testing/admin).
func (s *SnapshotScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout())
	defer cancel()

	started := time.Now()
	n, err := RefreshSnapshots(ctx, s.Handler)
	if err != nil {
		s.Handler.Logger.Error("[Scheduler] Refresh failed", "error", err)
		return
	}
	s.Handler.Logger.Info("[Scheduler] Refreshed snapshots",
		"employees", n,
		"duration", time.Since(started).String())
}

func (s *SnapshotScheduler) timeout() time.Duration {
	if s.Interval > 0 && s.Interval < 5*time.Minute {
		return s.Interval
	}
	return 5 * time.Minute
}

// GetNextRunTime returns when the next scheduled refresh will occur.
func (s *SnapshotScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(s.Interval)
}

// RefreshSnapshots replays every employee at today under the active policy,
// stores the snapshots and updates the tier headcount gauge. It returns the
// number of snapshots written.
func RefreshSnapshots(ctx context.Context, h *Handler) (int, error) {
	engine, policy, err := h.activeEngine()
	if err != nil {
		return 0, err
	}
	employees, err := h.Store.ListEmployees(ctx)
	if err != nil {
		return 0, err
	}

	counts := make(map[discipline.TierName]int, len(discipline.TierOrder))
	written := 0
	for _, emp := range employees {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		vs, err := h.Ledger.Violations(ctx, generic.EntityID(emp.ID))
		if err != nil {
			h.Logger.Warn("[Scheduler] Skipping employee", "employee_id", emp.ID, "error", err)
			continue
		}
		res := engine.ComputeState(vs, generic.TimePoint{})
		counts[res.Tier]++

		resultJSON, err := json.Marshal(res)
		if err != nil {
			h.Logger.Warn("[Scheduler] Skipping employee", "employee_id", emp.ID, "error", err)
			continue
		}
		err = h.Store.SaveSnapshot(ctx, sqlite.SnapshotRecord{
			EmployeeID:    emp.ID,
			PolicyID:      policy.ID,
			PolicyVersion: policy.Version,
			AsOf:          res.AsOf,
			Points:        res.Points,
			Tier:          string(res.Tier),
			DAStageIndex:  res.DAStageIndex,
			ResultJSON:    string(resultJSON),
		})
		if err != nil {
			h.Logger.Warn("[Scheduler] Skipping employee", "employee_id", emp.ID, "error", err)
			continue
		}
		written++
	}

	h.Metrics.SetTierCounts(counts)
	return written, nil
}

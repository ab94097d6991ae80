package services

import (
	"context"
	"sync"
	"time"

	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
)

// BatchRequest is one user's generation job inside a batch run.
type BatchRequest struct {
	UserID string
	Params GenerateParams
}

// BatchResult summarizes a batch run. One user's failure never aborts the
// others; failures are counted and reported per user.
type BatchResult struct {
	Total       int               `json:"total"`
	Succeeded   int               `json:"succeeded"`
	Failed      int               `json:"failed"`
	FailedUsers map[string]string `json:"failed_users,omitempty"`
	Duration    time.Duration     `json:"duration_ns"`
}

// BatchDriver runs recommendation generation for many users with bounded
// concurrency, for overnight refresh jobs.
type BatchDriver struct {
	engine      *AllocationEngine
	monitor     *ResourceMonitor
	audit       *AuditEmitter
	logger      logging.Logger
	concurrency int
	logStats    bool
}

// NewBatchDriver creates a batch driver around the allocation engine.
func NewBatchDriver(engine *AllocationEngine, monitor *ResourceMonitor, audit *AuditEmitter, logger logging.Logger, cfg config.BatchConfig) *BatchDriver {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &BatchDriver{
		engine:      engine,
		monitor:     monitor,
		audit:       audit,
		logger:      logger.WithComponent("batch_driver"),
		concurrency: concurrency,
		logStats:    cfg.LogResourceStats,
	}
}

// Run executes all requests and returns the aggregate outcome. Context
// cancellation stops dispatching new jobs; in-flight jobs observe the same
// context and abort on their own I/O.
func (d *BatchDriver) Run(ctx context.Context, requests []BatchRequest) *BatchResult {
	started := time.Now()
	if d.logStats && d.monitor != nil {
		d.monitor.LogStats("batch_start")
	}

	jobs := make(chan BatchRequest)
	result := &BatchResult{
		Total:       len(requests),
		FailedUsers: make(map[string]string),
	}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				_, err := d.engine.Generate(ctx, req.UserID, req.Params)
				mu.Lock()
				if err != nil {
					result.Failed++
					result.FailedUsers[req.UserID] = err.Error()
				} else {
					result.Succeeded++
				}
				mu.Unlock()
				if err != nil {
					d.logger.WithError(err).WithUserID(req.UserID).Warn("batch generation failed for user")
				}
			}
		}()
	}

dispatch:
	for _, req := range requests {
		select {
		case jobs <- req:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	result.Duration = time.Since(started)
	if d.logStats && d.monitor != nil {
		d.monitor.LogStats("batch_end")
	}
	if d.audit != nil {
		d.audit.Emit(AuditEvent{
			Type:          AuditEventBatchRun,
			CorrelationID: "batch-" + started.UTC().Format("20060102T150405"),
			Details: map[string]interface{}{
				"total":       result.Total,
				"succeeded":   result.Succeeded,
				"failed":      result.Failed,
				"duration_ms": result.Duration.Milliseconds(),
			},
		})
	}
	d.logger.LogBusinessEvent("batch_run_completed", map[string]interface{}{
		"total":       result.Total,
		"succeeded":   result.Succeeded,
		"failed":      result.Failed,
		"duration_ms": result.Duration.Milliseconds(),
	})
	return result
}

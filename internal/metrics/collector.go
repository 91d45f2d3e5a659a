package metrics

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"open-lovable/internal/logging"
)

// RuntimeCollector periodically samples goroutines and database pool stats
type RuntimeCollector struct {
	db       *gorm.DB
	metrics  *Metrics
	interval time.Duration
	stopCh   chan struct{}
}

// NewRuntimeCollector creates a collector; db may be nil
func NewRuntimeCollector(db *gorm.DB, interval time.Duration) *RuntimeCollector {
	return &RuntimeCollector{
		db:       db,
		metrics:  Get(),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins periodic collection
func (rc *RuntimeCollector) Start(ctx context.Context) {
	go func() {
		rc.collectAll()

		ticker := time.NewTicker(rc.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rc.collectAll()
			case <-rc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the collector
func (rc *RuntimeCollector) Stop() {
	close(rc.stopCh)
}

func (rc *RuntimeCollector) collectAll() {
	rc.metrics.GoroutineNum.Set(float64(runtime.NumGoroutine()))
	rc.collectDatabaseMetrics()
}

func (rc *RuntimeCollector) collectDatabaseMetrics() {
	if rc.db == nil {
		return
	}

	sqlDB, err := rc.db.DB()
	if err != nil {
		logging.L().Warn("failed to get database stats", zap.Error(err))
		return
	}

	stats := sqlDB.Stats()
	rc.metrics.DBConnectionsActive.Set(float64(stats.InUse))
	rc.metrics.DBConnectionsIdle.Set(float64(stats.Idle))
}

// AIMetricsRecorder feeds smart router events into Prometheus
type AIMetricsRecorder struct {
	metrics *Metrics
}

// NewAIMetricsRecorder creates a new AI metrics recorder
func NewAIMetricsRecorder() *AIMetricsRecorder {
	return &AIMetricsRecorder{
		metrics: Get(),
	}
}

// RecordRequest records one model attempt
func (r *AIMetricsRecorder) RecordRequest(provider, model string, success bool, duration time.Duration, tokens int) {
	status := "success"
	if !success {
		status = "error"
	}
	r.metrics.RecordAIRequest(provider, model, status, duration, tokens)
	r.metrics.SetAIModelHealth(model, success)
}

// RecordFallback records moving from one model to the next
func (r *AIMetricsRecorder) RecordFallback(fromModel, toModel, reason string) {
	r.metrics.RecordAIFallback(fromModel, toModel, sanitizeLabel(reason, "unknown"))
}

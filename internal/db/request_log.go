package db

import (
	"context"
	"time"

	"go.uber.org/zap"

	"open-lovable/internal/logging"
	"open-lovable/internal/metrics"
	"open-lovable/pkg/models"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// RequestLogger writes the AI request log. A nil *RequestLogger or one
// without a database accepts records and drops them.
type RequestLogger struct {
	db *Database
}

// NewRequestLogger creates a logger over db; db may be nil
func NewRequestLogger(db *Database) *RequestLogger {
	return &RequestLogger{db: db}
}

// Enabled reports whether records are persisted
func (l *RequestLogger) Enabled() bool {
	return l != nil && l.db != nil
}

// Record inserts entry. Failures are logged, never returned.
func (l *RequestLogger) Record(ctx context.Context, entry *models.AIRequestLog) {
	if !l.Enabled() || entry == nil {
		return
	}
	start := time.Now()
	err := l.db.DB.WithContext(ctx).Create(entry).Error
	metrics.Get().RecordDBQuery("insert", entry.TableName(), time.Since(start), err)
	if err != nil {
		logging.L().Warn("failed to record AI request",
			zap.String("route", entry.Route),
			zap.String("request_id", entry.RequestID),
			zap.Error(err),
		)
	}
}

// Recent returns the newest entries first; limit is clamped to [1, 500]
func (l *RequestLogger) Recent(ctx context.Context, limit int) ([]models.AIRequestLog, error) {
	if !l.Enabled() {
		return []models.AIRequestLog{}, nil
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	start := time.Now()
	var out []models.AIRequestLog
	err := l.db.DB.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	metrics.Get().RecordDBQuery("select", models.AIRequestLog{}.TableName(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UsageByModel aggregates the log per served model, busiest first
func (l *RequestLogger) UsageByModel(ctx context.Context) ([]models.ModelUsage, error) {
	if !l.Enabled() {
		return []models.ModelUsage{}, nil
	}

	start := time.Now()
	var out []models.ModelUsage
	err := l.db.DB.WithContext(ctx).
		Model(&models.AIRequestLog{}).
		Select("served_model, count(*) AS requests, " +
			"sum(CASE WHEN success THEN 0 ELSE 1 END) AS failures, " +
			"avg(duration_ms) AS avg_duration_ms").
		Where("served_model <> ''").
		Group("served_model").
		Order("requests DESC").
		Scan(&out).Error
	metrics.Get().RecordDBQuery("aggregate", models.AIRequestLog{}.TableName(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Prune deletes entries created before cutoff and returns how many went
func (l *RequestLogger) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if !l.Enabled() {
		return 0, nil
	}

	start := time.Now()
	result := l.db.DB.WithContext(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&models.AIRequestLog{})
	metrics.Get().RecordDBQuery("delete", models.AIRequestLog{}.TableName(), time.Since(start), result.Error)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Count returns the number of logged requests
func (l *RequestLogger) Count(ctx context.Context) (int64, error) {
	if !l.Enabled() {
		return 0, nil
	}
	var n int64
	err := l.db.DB.WithContext(ctx).Model(&models.AIRequestLog{}).Count(&n).Error
	return n, err
}

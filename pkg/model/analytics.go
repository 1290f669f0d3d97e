package model

import (
	"time"

	"github.com/google/uuid"
)

// AnalyticsMetric is a single recorded business metric. The reporting
// handler reads recent metrics to build its report.
type AnalyticsMetric struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	BusinessID  uuid.UUID `gorm:"type:uuid;not null;index"`
	MetricType  string    `gorm:"not null"`
	MetricValue float64
	RecordedAt  time.Time `gorm:"index"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionSkipped   ExecutionStatus = "skipped"
)

type Execution struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	WorkflowID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Workflow     *Workflow `gorm:"foreignKey:WorkflowID"`
	Status       ExecutionStatus `gorm:"type:varchar(20);default:'pending';index"`
	StartedAt    time.Time `gorm:"index"`
	CompletedAt  *time.Time
	DurationMS   int64 `gorm:"column:duration_ms"`
	Output       JSONB `gorm:"type:jsonb;default:'{}'"`
	ErrorMessage string
	CreatedAt    time.Time
}

// Terminal reports whether the execution reached a final state.
func (e *Execution) Terminal() bool {
	switch e.Status {
	case ExecutionSucceeded, ExecutionFailed, ExecutionSkipped:
		return true
	default:
		return false
	}
}

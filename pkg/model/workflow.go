package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type WorkflowStatus string

const (
	WorkflowActive  WorkflowStatus = "active"
	WorkflowPaused  WorkflowStatus = "paused"
	WorkflowDeleted WorkflowStatus = "deleted"
)

type WorkflowType string

const (
	TypeEmailMarketing  WorkflowType = "email-marketing"
	TypeInventory       WorkflowType = "inventory"
	TypeCustomerService WorkflowType = "customer-service"
	TypeSocialMedia     WorkflowType = "social-media"
	TypeReporting       WorkflowType = "reporting"
	TypeInvoicing       WorkflowType = "invoicing"
)

type Workflow struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	BusinessID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Name           string    `gorm:"not null"`
	Description    string
	Type           WorkflowType   `gorm:"type:varchar(50);not null;index"`
	Config         JSONB          `gorm:"type:jsonb;default:'{}'"`
	Schedule       string         `gorm:"default:''"`
	Status         WorkflowStatus `gorm:"type:varchar(20);default:'active';index"`
	Tags           pq.StringArray `gorm:"type:text[]"`
	LastRun        *time.Time
	ExecutionCount int64 `gorm:"default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

// Schedulable reports whether the workflow should hold a live trigger.
// Workflows without a schedule are manual-only.
func (w *Workflow) Schedulable() bool {
	return w.Status == WorkflowActive && w.Schedule != ""
}

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONB) GormDataType() string {
	return "jsonb"
}

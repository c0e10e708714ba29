package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// SecurityEvent is a persisted authorization or assignment audit record.
type SecurityEvent struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	Action       string            `gorm:"type:varchar(191);not null;index"`
	Outcome      Outcome           `gorm:"type:varchar(32);not null"`
	ActorID      *string           `gorm:"column:actor_id;type:varchar(64)"`
	ActorRole    *string           `gorm:"column:actor_role;type:varchar(64)"`
	ResourceType *string           `gorm:"column:resource_type;type:varchar(64)"`
	ResourceID   *string           `gorm:"column:resource_id;type:varchar(64)"`
	RequestID    *string           `gorm:"column:request_id;type:varchar(64)"`
	IPAddress    *string           `gorm:"column:ip_address;type:varchar(64)"`
	UserAgent    *string           `gorm:"column:user_agent;type:text"`
	Metadata     datatypes.JSONMap `gorm:"type:json"`
	CreatedAt    time.Time         `gorm:"not null;index"`
}

func (SecurityEvent) TableName() string { return "security_events" }

// Event is the caller-facing input for a security audit record. Empty request
// fields are filled from the context.
type Event struct {
	Action       string
	Outcome      Outcome
	ActorID      string
	ActorRole    string
	ResourceType string
	ResourceID   string
	RequestID    string
	IPAddress    string
	UserAgent    string
	Metadata     map[string]any
}

type EventCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Action  string
	Outcome string
	ActorID string
	StartAt *time.Time
	EndAt   *time.Time
	Cursor  *EventCursor
	Limit   int
}

package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ProjectStatus string

const (
	ProjectStatusInquiry    ProjectStatus = "inquiry"
	ProjectStatusQuoted     ProjectStatus = "quoted"
	ProjectStatusApproved   ProjectStatus = "approved"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

// ActiveStatuses count against a representative's capacity.
var ActiveStatuses = []ProjectStatus{
	ProjectStatusInquiry,
	ProjectStatusQuoted,
	ProjectStatusApproved,
	ProjectStatusInProgress,
}

// Project is the subset of the projects table the assignment flow reads and writes.
type Project struct {
	ID                 snowflake.ID  `gorm:"primaryKey"`
	InquiryNumber      *string       `gorm:"column:inquiry_number;type:varchar(32);uniqueIndex"`
	Status             ProjectStatus `gorm:"type:varchar(32);not null;default:inquiry"`
	AssignedSalesRepID *snowflake.ID `gorm:"column:assigned_sales_rep_id;index"`
	AssignedAt         *time.Time    `gorm:"column:assigned_at"`
}

func (Project) TableName() string { return "projects" }

// User is the subset of the users table needed to pick a representative.
type User struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	Name          string       `gorm:"type:varchar(191)"`
	Email         string       `gorm:"type:varchar(191)"`
	IsActive      bool         `gorm:"column:is_active;not null"`
	IsSalesRep    bool         `gorm:"column:is_sales_rep;not null"`
	SalesCapacity *int         `gorm:"column:sales_capacity"`
}

func (User) TableName() string { return "users" }

type Workload struct {
	UserID                snowflake.ID `json:"user_id"`
	Name                  string       `json:"name"`
	Email                 string       `json:"email"`
	ActiveProjectCount    int64        `json:"active_project_count"`
	Capacity              int          `json:"capacity"`
	UtilizationPercentage int          `json:"utilization_percentage"`
}

type SalesRep struct {
	ID    snowflake.ID `json:"id"`
	Name  string       `json:"name"`
	Email string       `json:"email"`
}

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListSalesReps(ctx context.Context, db *gorm.DB) ([]User, error)
	CountActiveProjects(ctx context.Context, db *gorm.DB, repIDs []snowflake.ID) (map[snowflake.ID]int64, error)
	FindUser(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindProject(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Project, error)
	// UpdateAssignment writes only the assignment columns and returns the affected row count.
	UpdateAssignment(ctx context.Context, db *gorm.DB, projectID snowflake.ID, repID *snowflake.ID, assignedAt *time.Time) (int64, error)
}

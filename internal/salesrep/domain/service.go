package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetSalesRepWorkloads(ctx context.Context) ([]Workload, error)
	// AutoAssignSalesRep returns nil when no representative could be assigned.
	// Failures are logged; callers proceed without an assignment.
	AutoAssignSalesRep(ctx context.Context, projectID snowflake.ID) *SalesRep
	AssignSalesRep(ctx context.Context, projectID, repID snowflake.ID) (bool, error)
	UnassignSalesRep(ctx context.Context, projectID snowflake.ID) (bool, error)
	GetAssignment(ctx context.Context, projectID snowflake.ID) (*SalesRep, error)
}

// Locker serialises the read-decide-write window of automatic assignment across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

var (
	ErrInvalidProjectID = errors.New("invalid_project_id")
	ErrInvalidRepID     = errors.New("invalid_sales_rep_id")
	ErrProjectNotFound  = errors.New("project_not_found")
)

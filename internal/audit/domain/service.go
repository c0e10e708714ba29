package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/buildledger/pkg/db/pagination"
)

type ListRequest struct {
	pagination.Pagination
	Action  string
	Outcome string
	ActorID string
	StartAt *time.Time
	EndAt   *time.Time
}

type ListResponse struct {
	pagination.PageInfo
	Events []SecurityEvent `json:"events"`
}

type Service interface {
	LogSecurityEvent(ctx context.Context, event Event) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

// Dispatcher hands events to a background writer. Dispatch never blocks and
// reports false when the event was dropped.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) bool
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)

package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/buildledger/internal/audit/domain"
	"github.com/smallbiznis/buildledger/internal/audit/masking"
	"github.com/smallbiznis/buildledger/internal/clock"
	obscontext "github.com/smallbiznis/buildledger/internal/observability/context"
	"github.com/smallbiznis/buildledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: c,
	}
}

func (s *Service) LogSecurityEvent(ctx context.Context, event auditdomain.Event) error {
	event = enrichFromContext(ctx, event)
	action := strings.TrimSpace(event.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	outcome := event.Outcome
	if outcome == "" {
		outcome = auditdomain.OutcomeSuccess
	}

	entry := auditdomain.SecurityEvent{
		ID:           s.genID.Generate(),
		Action:       action,
		Outcome:      outcome,
		ActorID:      optional(event.ActorID),
		ActorRole:    optional(event.ActorRole),
		ResourceType: optional(event.ResourceType),
		ResourceID:   optional(event.ResourceID),
		RequestID:    optional(event.RequestID),
		IPAddress:    optional(event.IPAddress),
		UserAgent:    optional(event.UserAgent),
		CreatedAt:    s.clock.Now(),
	}
	if metadata := masking.MaskMetadata(event.Metadata); metadata != nil {
		entry.Metadata = datatypes.JSONMap(metadata)
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write security event", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidTimeRange
	}

	var cursor *auditdomain.EventCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.EventCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Action:  req.Action,
		Outcome: req.Outcome,
		ActorID: req.ActorID,
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
		Cursor:  cursor,
		Limit:   pageSize,
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *auditdomain.SecurityEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	events := make([]auditdomain.SecurityEvent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		events = append(events, *item)
	}

	return auditdomain.ListResponse{PageInfo: *pageInfo, Events: events}, nil
}

// enrichFromContext fills request metadata the caller left blank.
func enrichFromContext(ctx context.Context, event auditdomain.Event) auditdomain.Event {
	if event.RequestID == "" {
		event.RequestID = obscontext.RequestIDFromContext(ctx)
	}
	if event.ActorID == "" && event.ActorRole == "" {
		event.ActorID, event.ActorRole = obscontext.ActorFromContext(ctx)
	}
	if event.IPAddress == "" && event.UserAgent == "" {
		event.IPAddress, event.UserAgent = obscontext.ClientFromContext(ctx)
	}
	return event
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

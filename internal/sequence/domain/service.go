package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Allocator issues strictly increasing values per counter name.
//
// When tx is nil the allocator runs in a transaction of its own and a value,
// once returned, is never handed out again. Otherwise the allocation joins the
// caller's transaction: if the caller rolls back, the increment is undone and
// the same value is returned by the next allocation.
type Allocator interface {
	Next(ctx context.Context, tx *gorm.DB, name string) (int64, error)
	Peek(ctx context.Context, name string) (int64, error)
}

// Request describes the counter behind one identifier kind.
//
// Table and Column name where formatted identifiers are stored; only the
// count-based strategy reads them.
type Request struct {
	Name   string
	Prefix string
	Table  string
	Column string
}

// Strategy turns a Request into the next sequence value.
type Strategy interface {
	Next(ctx context.Context, tx *gorm.DB, req Request) (int64, error)
}

var (
	ErrInvalidName        = errors.New("invalid_sequence_name")
	ErrInvalidRequest     = errors.New("invalid_sequence_request")
	ErrConcurrentAdvance  = errors.New("sequence_concurrent_advance")
	ErrSequenceNotCreated = errors.New("sequence_not_created")
)

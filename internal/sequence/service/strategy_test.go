package service

import (
	"context"
	"testing"

	"github.com/smallbiznis/buildledger/internal/config"
	"github.com/smallbiznis/buildledger/internal/sequence/domain"
	"github.com/smallbiznis/buildledger/internal/sequence/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCountStrategyCountsPrefixedRows(t *testing.T) {
	svc, db := setupAllocator(t, nil)
	require.NoError(t, db.Exec(`CREATE TABLE projects (id INTEGER PRIMARY KEY, inquiry_number TEXT)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO projects (id, inquiry_number) VALUES
		(1, 'INQ-2026-000001'), (2, 'INQ-2026-000002'), (3, 'INQ-2025-000009')`).Error)

	strategy := NewStrategy(StrategyParams{
		Config:    config.Config{NumberingMode: config.NumberingModeCount},
		DB:        db,
		Log:       zaptest.NewLogger(t),
		Repo:      repository.Provide(),
		Allocator: svc,
	})
	_, ok := strategy.(*CountStrategy)
	require.True(t, ok)

	got, err := strategy.Next(context.Background(), nil, domain.Request{
		Name:   "inquiry_number:2026",
		Prefix: "INQ-2026-",
		Table:  "projects",
		Column: "inquiry_number",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	_, err = strategy.Next(context.Background(), nil, domain.Request{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestNewStrategyDefaultsToAtomic(t *testing.T) {
	svc, db := setupAllocator(t, nil)
	strategy := NewStrategy(StrategyParams{
		Config:    config.Config{NumberingMode: config.NumberingModeAtomic},
		DB:        db,
		Log:       zaptest.NewLogger(t),
		Repo:      repository.Provide(),
		Allocator: svc,
	})

	first, err := strategy.Next(context.Background(), nil, domain.Request{Name: "invoice_number"})
	require.NoError(t, err)
	second, err := strategy.Next(context.Background(), nil, domain.Request{Name: "invoice_number"})
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}

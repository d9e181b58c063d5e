package service

import (
	"context"
	"time"

	"timeTracker/internal/models/entry"

	"github.com/google/uuid"
)

type EntryRepository interface {
	HealthCheck(ctx context.Context) error
	Create(ctx context.Context, e *entry.Entry) error
	Update(ctx context.Context, e *entry.Entry) error
	Stop(ctx context.Context, id, userID uuid.UUID, stoppedAt time.Time) (*entry.Entry, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*entry.Entry, error)
	GetRunning(ctx context.Context, userID uuid.UUID) (*entry.Entry, error)
	List(ctx context.Context, userID uuid.UUID, q entry.ListQuery) ([]*entry.Entry, int64, int64, error)
	SumRange(ctx context.Context, userID uuid.UUID, from, to, now time.Time) (int64, int64, error)
	RunningOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*entry.Entry, error)
}

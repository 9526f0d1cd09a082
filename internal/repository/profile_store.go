package repository

import (
	"context"

	"github.com/gdugdh24/kindred-backend/internal/domain"
)

// ProfileStore is the remote document store holding one Record per user plus a
// separate append-only set of dismissed user ids per user.
//
// Subscribe delivers the current record (nil when absent) and then every change until ctx
// is cancelled, at which point the channel is closed. Write merges the patch field by field
// into the stored record; writing to a missing record creates it.
type ProfileStore interface {
	Subscribe(ctx context.Context, userID string) (<-chan *domain.Record, error)
	Read(ctx context.Context, userID string) (*domain.Record, error)
	Write(ctx context.Context, userID string, patch domain.Patch) error
	CreateIfAbsent(ctx context.Context, userID string, record *domain.Record) (created bool, err error)
	ListProfiles(ctx context.Context) ([]domain.UserProfile, error)
	AddDismissed(ctx context.Context, userID, dismissedID string) error
	DismissedIDs(ctx context.Context, userID string) ([]string, error)
	Close() error
}

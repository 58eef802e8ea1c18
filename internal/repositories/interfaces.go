package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/notesync/internal/cursor"
	"github.com/prudhvinik1/notesync/internal/models"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrNotOwned is returned when a row exists but belongs to another account.
	ErrNotOwned = errors.New("owned by another account")

	ErrEmailExists = errors.New("email already exists")
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error
}

// ItemRepository is the per-account item store used by the sync engine.
// All implementations must make Upsert atomic per row.
type ItemRepository interface {
	// Upsert inserts the item or overwrites the mutable fields of the
	// existing row with the same UUID. Timestamps are always server-assigned.
	// The returned bool is true when a new row was created.
	Upsert(ctx context.Context, item *models.Item) (*models.Item, bool, error)
	Get(ctx context.Context, id uuid.UUID, accountID uuid.UUID) (*models.Item, error)
	// RangeSince returns up to limit items ordered by (updated_at, uuid)
	// strictly after since, and whether more rows remain.
	RangeSince(ctx context.Context, accountID uuid.UUID, since cursor.Position, exclude []uuid.UUID, limit int) ([]*models.Item, bool, error)
	HardDelete(ctx context.Context, id uuid.UUID, accountID uuid.UUID) error
	Count(ctx context.Context, accountID uuid.UUID) (int, error)
	// Now reads the clock that stamps updated_at.
	Now(ctx context.Context) (time.Time, error)
}

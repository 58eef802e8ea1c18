package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/notesync/internal/cursor"
	"github.com/prudhvinik1/notesync/internal/models"
	"github.com/stretchr/testify/mock"
)

type mockItemRepository struct {
	mock.Mock
}

func (m *mockItemRepository) Upsert(ctx context.Context, item *models.Item) (*models.Item, bool, error) {
	args := m.Called(ctx, item)
	saved, _ := args.Get(0).(*models.Item)
	return saved, args.Bool(1), args.Error(2)
}

func (m *mockItemRepository) Get(ctx context.Context, id uuid.UUID, accountID uuid.UUID) (*models.Item, error) {
	args := m.Called(ctx, id, accountID)
	item, _ := args.Get(0).(*models.Item)
	return item, args.Error(1)
}

func (m *mockItemRepository) RangeSince(ctx context.Context, accountID uuid.UUID, since cursor.Position, exclude []uuid.UUID, limit int) ([]*models.Item, bool, error) {
	args := m.Called(ctx, accountID, since, exclude, limit)
	items, _ := args.Get(0).([]*models.Item)
	return items, args.Bool(1), args.Error(2)
}

func (m *mockItemRepository) HardDelete(ctx context.Context, id uuid.UUID, accountID uuid.UUID) error {
	return m.Called(ctx, id, accountID).Error(0)
}

func (m *mockItemRepository) Count(ctx context.Context, accountID uuid.UUID) (int, error) {
	args := m.Called(ctx, accountID)
	return args.Int(0), args.Error(1)
}

func (m *mockItemRepository) Now(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	now, _ := args.Get(0).(time.Time)
	return now, args.Error(1)
}

// recordingBackuper collects enqueued jobs. full makes every Enqueue fail.
type recordingBackuper struct {
	mu   sync.Mutex
	jobs []uuid.UUID
	full bool
}

func (b *recordingBackuper) Enqueue(accountID, itemID uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return false
	}
	b.jobs = append(b.jobs, itemID)
	return true
}

func (b *recordingBackuper) Jobs() []uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uuid.UUID(nil), b.jobs...)
}

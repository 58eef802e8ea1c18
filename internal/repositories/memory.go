package repositories

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/notesync/internal/cursor"
	"github.com/prudhvinik1/notesync/internal/models"
)

// MemoryItemRepository is an in-process ItemRepository. A single mutex
// serializes writers, which gives the same per-row atomicity as the
// Postgres upsert.
type MemoryItemRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]models.Item
	now   func() time.Time
}

func NewMemoryItemRepository() *MemoryItemRepository {
	return NewMemoryItemRepositoryWithClock(time.Now)
}

func NewMemoryItemRepositoryWithClock(now func() time.Time) *MemoryItemRepository {
	return &MemoryItemRepository{
		items: make(map[uuid.UUID]models.Item),
		now:   now,
	}
}

func (r *MemoryItemRepository) Upsert(ctx context.Context, item *models.Item) (*models.Item, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC().Truncate(time.Microsecond)
	next := *item
	next.Normalize()

	existing, ok := r.items[item.UUID]
	if ok {
		if existing.UserUUID != item.UserUUID {
			return nil, false, ErrNotOwned
		}
		next.CreatedAt = existing.CreatedAt
		next.UpdatedAt = now
		if !next.UpdatedAt.After(existing.UpdatedAt) {
			next.UpdatedAt = existing.UpdatedAt.Add(time.Microsecond)
		}
	} else {
		next.CreatedAt = now
		next.UpdatedAt = now
	}

	r.items[next.UUID] = next
	saved := next
	return &saved, !ok, nil
}

func (r *MemoryItemRepository) Get(ctx context.Context, id uuid.UUID, accountID uuid.UUID) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok || item.UserUUID != accountID {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (r *MemoryItemRepository) RangeSince(ctx context.Context, accountID uuid.UUID, since cursor.Position, exclude []uuid.UUID, limit int) ([]*models.Item, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if limit <= 0 {
		return []*models.Item{}, false, nil
	}

	skip := make(map[uuid.UUID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	r.mu.Lock()
	matched := make([]*models.Item, 0)
	for _, item := range r.items {
		if item.UserUUID != accountID {
			continue
		}
		if _, ok := skip[item.UUID]; ok {
			continue
		}
		if !after(item, since) {
			continue
		}
		copied := item
		matched = append(matched, &copied)
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return less(matched[i], matched[j])
	})

	if len(matched) > limit {
		return matched[:limit], true, nil
	}
	return matched, false, nil
}

func (r *MemoryItemRepository) HardDelete(ctx context.Context, id uuid.UUID, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if item.UserUUID != accountID {
		return ErrNotOwned
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryItemRepository) Count(ctx context.Context, accountID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, item := range r.items {
		if item.UserUUID == accountID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryItemRepository) Now(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	return r.now().UTC().Truncate(time.Microsecond), nil
}

// after mirrors the SQL predicates used by PostgresItemRepository.RangeSince.
func after(item models.Item, since cursor.Position) bool {
	switch {
	case since.HasUUID():
		if item.UpdatedAt.Equal(since.Time) {
			return bytes.Compare(item.UUID[:], since.UUID[:]) > 0
		}
		return item.UpdatedAt.After(since.Time)
	case !since.Time.IsZero():
		return item.UpdatedAt.After(since.Time)
	default:
		return true
	}
}

func less(a, b *models.Item) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return bytes.Compare(a.UUID[:], b.UUID[:]) < 0
}

type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]models.Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[uuid.UUID]models.Account)}
}

func (r *MemoryAccountRepository) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(account.Email)
	for _, existing := range r.accounts {
		if existing.Email == email && existing.DeletedAt == nil {
			return ErrEmailExists
		}
	}

	now := time.Now().UTC()
	account.ID = uuid.New()
	account.Email = email
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = *account
	return nil
}

func (r *MemoryAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok || account.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (r *MemoryAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = normalizeEmail(email)
	for _, account := range r.accounts {
		if account.Email == email && account.DeletedAt == nil {
			found := account
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryAccountRepository) Update(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.accounts[account.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrNotFound
	}
	existing.Email = normalizeEmail(account.Email)
	existing.PasswordHash = account.PasswordHash
	existing.UpdatedAt = time.Now().UTC()
	r.accounts[account.ID] = existing
	account.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r *MemoryAccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.accounts[id]
	if !ok || existing.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	existing.DeletedAt = &now
	r.accounts[id] = existing
	return nil
}

// MemorySessionRepository expires sessions on read instead of with a TTL.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]models.Session)}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = *session
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !session.ExpiresAt.After(time.Now()) {
		delete(r.sessions, id)
		return nil, ErrNotFound
	}
	return &session, nil
}

func (r *MemorySessionRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sessions []*models.Session
	now := time.Now()
	for id, session := range r.sessions {
		if session.AccountID != accountID {
			continue
		}
		if !session.ExpiresAt.After(now) {
			delete(r.sessions, id)
			continue
		}
		s := session
		sessions = append(sessions, &s)
	}
	return sessions, nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *MemorySessionRepository) DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, session := range r.sessions {
		if session.AccountID == accountID {
			delete(r.sessions, id)
		}
	}
	return nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/notesync/internal/cursor"
	"github.com/prudhvinik1/notesync/internal/models"
	"github.com/prudhvinik1/notesync/internal/repositories"
	"go.uber.org/zap"
)

type SyncOptions struct {
	DefaultLimit int
	MaxLimit     int
	// BoundaryLag is subtracted from the store clock when issuing a sync
	// token. Rows stamped inside that window but committed later are still
	// returned by the next sync. Values below one microsecond are raised to it.
	BoundaryLag time.Duration
}

type SyncRequest struct {
	SyncToken   string
	CursorToken string
	Limit       int
	Items       []SubmittedItem
}

// SyncResult slices are never nil. An empty CursorToken means there are no
// further pages.
type SyncResult struct {
	RetrievedItems []*models.Item
	SavedItems     []*models.Item
	Unsaved        []UnsavedItem
	SyncToken      string
	CursorToken    string
}

type SyncService struct {
	items    repositories.ItemRepository
	resolver *ConflictResolver
	logger   *zap.Logger
	opts     SyncOptions
}

func NewSyncService(items repositories.ItemRepository, logger *zap.Logger, opts SyncOptions) *SyncService {
	return &SyncService{
		items:    items,
		resolver: NewConflictResolver(items, logger),
		logger:   logger,
		opts:     opts,
	}
}

// Sync applies the submitted items for the account and returns the items the
// client has not seen yet, one page at a time.
func (s *SyncService) Sync(ctx context.Context, accountID uuid.UUID, req SyncRequest) (*SyncResult, error) {
	log := s.logger.With(zap.String("account_id", accountID.String()))

	syncPos, err := cursor.DecodeSyncToken(req.SyncToken)
	if err != nil {
		log.Warn("malformed sync token, syncing from scratch", zap.Error(err))
		syncPos = cursor.Position{}
	}

	start := syncPos
	if req.CursorToken != "" {
		cursorPos, err := cursor.DecodeCursorToken(req.CursorToken)
		if err != nil {
			log.Warn("malformed cursor token, syncing from scratch", zap.Error(err))
			start = cursor.Position{}
		} else {
			start = cursorPos
		}
	}

	result := &SyncResult{
		RetrievedItems: []*models.Item{},
		SavedItems:     make([]*models.Item, 0, len(req.Items)),
		Unsaved:        []UnsavedItem{},
	}

	exclude := make([]uuid.UUID, 0, len(req.Items))
	for _, sub := range req.Items {
		res := s.resolver.Resolve(ctx, accountID, sub)
		if res.Unsaved != nil {
			result.Unsaved = append(result.Unsaved, *res.Unsaved)
			continue
		}
		result.SavedItems = append(result.SavedItems, res.Item)
		exclude = append(exclude, res.Item.UUID)
	}

	// Read from the clock that stamps updated_at, before the range query.
	// A row is stamped before its transaction commits, so the token trails
	// the clock by the lag and late commits stay after it.
	now, err := s.items.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read item clock: %w", err)
	}
	boundary := now.UTC().Truncate(time.Microsecond).Add(-s.boundaryLag())

	retrieved, more, err := s.items.RangeSince(ctx, accountID, start, exclude, s.limit(req.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve items: %w", err)
	}
	result.RetrievedItems = retrieved

	if more && len(retrieved) > 0 {
		last := retrieved[len(retrieved)-1]
		result.CursorToken = cursor.EncodeCursorToken(cursor.Position{Time: last.UpdatedAt, UUID: last.UUID})
		result.SyncToken = cursor.EncodeSyncToken(syncPos.Time)
	} else {
		result.SyncToken = cursor.EncodeSyncToken(boundary)
	}

	log.Debug("sync completed",
		zap.Int("submitted", len(req.Items)),
		zap.Int("saved", len(result.SavedItems)),
		zap.Int("unsaved", len(result.Unsaved)),
		zap.Int("retrieved", len(result.RetrievedItems)),
		zap.Bool("more", more),
	)
	return result, nil
}

func (s *SyncService) boundaryLag() time.Duration {
	return max(s.opts.BoundaryLag, time.Microsecond)
}

func (s *SyncService) limit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	if s.opts.MaxLimit > 0 && limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}
	return limit
}

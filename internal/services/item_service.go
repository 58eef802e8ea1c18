package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prudhvinik1/notesync/internal/models"
	"github.com/prudhvinik1/notesync/internal/repositories"
	"go.uber.org/zap"
)

var (
	ErrItemNotFound   = errors.New("item not found")
	ErrItemConflict   = errors.New("item uuid is already in use")
	ErrBackupDisabled = errors.New("backups are not configured")
)

// Backuper schedules an asynchronous copy of an item. Enqueue must not block;
// it reports false when the job was dropped.
type Backuper interface {
	Enqueue(accountID, itemID uuid.UUID) bool
}

type ItemService struct {
	items          repositories.ItemRepository
	backups        Backuper
	backupOnCreate bool
	logger         *zap.Logger
}

// NewItemService accepts a nil backups to disable backups entirely.
func NewItemService(items repositories.ItemRepository, backups Backuper, backupOnCreate bool, logger *zap.Logger) *ItemService {
	return &ItemService{
		items:          items,
		backups:        backups,
		backupOnCreate: backupOnCreate,
		logger:         logger,
	}
}

func (s *ItemService) CreateItem(ctx context.Context, accountID uuid.UUID, in ItemInput) (*models.Item, error) {
	if in.UUID == uuid.Nil {
		in.UUID = uuid.New()
	}

	saved, created, err := s.items.Upsert(ctx, in.toModel(accountID))
	if errors.Is(err, repositories.ErrNotOwned) {
		return nil, ErrItemConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	if created && s.backupOnCreate && s.backups != nil {
		s.enqueue(accountID, saved.UUID)
	}
	return saved, nil
}

// BackupItem schedules a backup and returns without waiting for it.
func (s *ItemService) BackupItem(ctx context.Context, accountID, itemID uuid.UUID) error {
	if _, err := s.items.Get(ctx, itemID, accountID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("failed to get item: %w", err)
	}

	if s.backups == nil {
		return ErrBackupDisabled
	}
	s.enqueue(accountID, itemID)
	return nil
}

func (s *ItemService) DestroyItem(ctx context.Context, accountID, itemID uuid.UUID) error {
	err := s.items.HardDelete(ctx, itemID, accountID)
	if errors.Is(err, repositories.ErrNotFound) || errors.Is(err, repositories.ErrNotOwned) {
		return ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to destroy item: %w", err)
	}
	return nil
}

func (s *ItemService) enqueue(accountID, itemID uuid.UUID) {
	if !s.backups.Enqueue(accountID, itemID) {
		s.logger.Warn("backup queue full, dropping job",
			zap.String("account_id", accountID.String()),
			zap.String("item_id", itemID.String()),
		)
	}
}

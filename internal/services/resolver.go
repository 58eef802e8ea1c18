package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/prudhvinik1/notesync/internal/models"
	"github.com/prudhvinik1/notesync/internal/repositories"
	"go.uber.org/zap"
)

// Tags reported for items that could not be saved.
const (
	TagUUIDConflict = "uuid_conflict"
	TagUUIDError    = "uuid_error"
	TagInvalidItem  = "invalid_item"
	TagServerError  = "server_error"
)

// ItemInput holds the client-writable fields of an item. Ownership and
// timestamps are never taken from the client.
type ItemInput struct {
	UUID        uuid.UUID
	Content     *string
	ContentType string
	EncItemKey  *string
	AuthHash    *string
	Deleted     bool
}

// SubmittedItem is one entry of a sync batch. Raw keeps the entry as the
// client sent it so rejected entries can be echoed back unchanged. Err is set
// when the entry could not be decoded into an ItemInput.
type SubmittedItem struct {
	Input ItemInput
	Raw   json.RawMessage
	Err   error
}

type UnsavedItem struct {
	Item    SubmittedItem
	Tag     string
	Message string
}

type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	OutcomeDeleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeDeleted:
		return "deleted"
	default:
		return "rejected"
	}
}

// Resolution is the result for a single submitted item. Exactly one of Item
// and Unsaved is set.
type Resolution struct {
	Outcome Outcome
	Item    *models.Item
	Unsaved *UnsavedItem
}

// ConflictResolver applies one submitted item to the store. It never fails
// as a whole: every problem becomes an UnsavedItem.
type ConflictResolver struct {
	items  repositories.ItemRepository
	logger *zap.Logger
}

func NewConflictResolver(items repositories.ItemRepository, logger *zap.Logger) *ConflictResolver {
	return &ConflictResolver{items: items, logger: logger}
}

func (r *ConflictResolver) Resolve(ctx context.Context, accountID uuid.UUID, sub SubmittedItem) Resolution {
	if sub.Err != nil {
		return reject(sub, TagInvalidItem, "Item could not be decoded.")
	}
	if sub.Input.UUID == uuid.Nil {
		return reject(sub, TagUUIDError, "Item uuid is missing or invalid.")
	}

	saved, created, err := r.items.Upsert(ctx, sub.Input.toModel(accountID))
	if errors.Is(err, repositories.ErrNotOwned) {
		return reject(sub, TagUUIDConflict, "This item's uuid is already in use.")
	}
	if err != nil {
		r.logger.Error("failed to save item",
			zap.String("account_id", accountID.String()),
			zap.String("item_id", sub.Input.UUID.String()),
			zap.Error(err),
		)
		return reject(sub, TagServerError, "Item could not be saved.")
	}

	outcome := OutcomeUpdated
	switch {
	case created:
		outcome = OutcomeCreated
	case saved.Deleted:
		outcome = OutcomeDeleted
	}
	return Resolution{Outcome: outcome, Item: saved}
}

func reject(sub SubmittedItem, tag, message string) Resolution {
	return Resolution{
		Outcome: OutcomeRejected,
		Unsaved: &UnsavedItem{Item: sub, Tag: tag, Message: message},
	}
}

func (in ItemInput) toModel(accountID uuid.UUID) *models.Item {
	return &models.Item{
		UUID:        in.UUID,
		UserUUID:    accountID,
		Content:     in.Content,
		ContentType: in.ContentType,
		EncItemKey:  in.EncItemKey,
		AuthHash:    in.AuthHash,
		Deleted:     in.Deleted,
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type Item struct {
	UUID        uuid.UUID `json:"uuid"`
	UserUUID    uuid.UUID `json:"user_uuid"`
	Content     *string   `json:"content"`
	ContentType string    `json:"content_type"`
	EncItemKey  *string   `json:"enc_item_key"`
	AuthHash    *string   `json:"auth_hash"`
	Deleted     bool      `json:"deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Normalize clears the payload of a soft-deleted item.
func (i *Item) Normalize() {
	if i.Deleted {
		i.Content = nil
	}
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/notesync/internal/cursor"
	"github.com/prudhvinik1/notesync/internal/models"
)

const itemColumns = `uuid, user_uuid, content, content_type, enc_item_key, auth_hash, deleted, created_at, updated_at`

type PostgresItemRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresItemRepository(pool *pgxpool.Pool) *PostgresItemRepository {
	return &PostgresItemRepository{pool: pool}
}

// Upsert writes the item in a single statement. The ownership check lives in
// the ON CONFLICT ... WHERE clause, so two devices racing on the same uuid
// can never interleave a read and a write. updated_at always moves forward
// by at least a microsecond, even if the wall clock does not.
func (r *PostgresItemRepository) Upsert(ctx context.Context, item *models.Item) (*models.Item, bool, error) {
	item.Normalize()

	query := `INSERT INTO items (uuid, user_uuid, content, content_type, enc_item_key, auth_hash, deleted)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (uuid) DO UPDATE
	          SET content      = EXCLUDED.content,
	              content_type = EXCLUDED.content_type,
	              enc_item_key = EXCLUDED.enc_item_key,
	              auth_hash    = EXCLUDED.auth_hash,
	              deleted      = EXCLUDED.deleted,
	              updated_at   = GREATEST(clock_timestamp(), items.updated_at + interval '1 microsecond')
	          WHERE items.user_uuid = EXCLUDED.user_uuid
	          RETURNING ` + itemColumns + `, (xmax = 0) AS inserted`

	var saved models.Item
	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		item.UUID,
		item.UserUUID,
		item.Content,
		item.ContentType,
		item.EncItemKey,
		item.AuthHash,
		item.Deleted,
	).Scan(append(itemDest(&saved), &inserted)...)

	if errors.Is(err, pgx.ErrNoRows) {
		// The conflicting row failed the ownership predicate.
		return nil, false, ErrNotOwned
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert item: %w", err)
	}

	normalizeTimes(&saved)
	return &saved, inserted, nil
}

func (r *PostgresItemRepository) Get(ctx context.Context, id uuid.UUID, accountID uuid.UUID) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE uuid = $1 AND user_uuid = $2`

	var item models.Item
	err := r.pool.QueryRow(ctx, query, id, accountID).Scan(itemDest(&item)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	normalizeTimes(&item)
	return &item, nil
}

func (r *PostgresItemRepository) RangeSince(ctx context.Context, accountID uuid.UUID, since cursor.Position, exclude []uuid.UUID, limit int) ([]*models.Item, bool, error) {
	if limit <= 0 {
		return []*models.Item{}, false, nil
	}

	conditions := []string{"user_uuid = $1"}
	args := []any{accountID}

	switch {
	case since.HasUUID():
		args = append(args, since.Time, since.UUID)
		conditions = append(conditions, fmt.Sprintf("(updated_at, uuid) > ($%d, $%d)", len(args)-1, len(args)))
	case !since.Time.IsZero():
		args = append(args, since.Time)
		conditions = append(conditions, fmt.Sprintf("updated_at > $%d", len(args)))
	}

	if len(exclude) > 0 {
		ids := make([]string, len(exclude))
		for i, id := range exclude {
			ids[i] = id.String()
		}
		args = append(args, ids)
		conditions = append(conditions, fmt.Sprintf("NOT (uuid = ANY($%d::uuid[]))", len(args)))
	}

	// Fetch one extra row to learn whether another page exists.
	args = append(args, limit+1)
	query := fmt.Sprintf(`SELECT %s FROM items WHERE %s ORDER BY updated_at ASC, uuid ASC LIMIT $%d`,
		itemColumns, strings.Join(conditions, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Item, 0, limit)
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(itemDest(&item)...); err != nil {
			return nil, false, fmt.Errorf("failed to scan item: %w", err)
		}
		normalizeTimes(&item)
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating items: %w", err)
	}

	more := len(items) > limit
	if more {
		items = items[:limit]
	}
	return items, more, nil
}

func (r *PostgresItemRepository) HardDelete(ctx context.Context, id uuid.UUID, accountID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM items WHERE uuid = $1 AND user_uuid = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE uuid = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check item: %w", err)
	}
	if exists {
		return ErrNotOwned
	}
	return ErrNotFound
}

func (r *PostgresItemRepository) Count(ctx context.Context, accountID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE user_uuid = $1`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

// Now returns the database clock, the same clock_timestamp() that stamps
// updated_at on writes.
func (r *PostgresItemRepository) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := r.pool.QueryRow(ctx, `SELECT clock_timestamp()`).Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("failed to read database clock: %w", err)
	}
	return now.UTC(), nil
}

func itemDest(item *models.Item) []any {
	return []any{
		&item.UUID,
		&item.UserUUID,
		&item.Content,
		&item.ContentType,
		&item.EncItemKey,
		&item.AuthHash,
		&item.Deleted,
		&item.CreatedAt,
		&item.UpdatedAt,
	}
}

func normalizeTimes(item *models.Item) {
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
}

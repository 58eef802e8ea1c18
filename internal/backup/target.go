// Package backup writes point-in-time copies of items to object storage.
// Jobs are queued by the HTTP layer and uploaded by a small worker pool, off
// the request path.
package backup

import (
	"context"
	"fmt"

	"github.com/prudhvinik1/notesync/internal/config"
)

// Target stores one backup object under key.
type Target interface {
	Put(ctx context.Context, key string, data []byte) error
}

// NewTarget returns the Target selected by cfg.Driver, or nil when backups
// are disabled.
func NewTarget(ctx context.Context, cfg config.BackupConfig) (Target, error) {
	switch cfg.Driver {
	case config.BackupDriverNone, "":
		return nil, nil
	case config.BackupDriverMinio:
		t, err := NewMinioTarget(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	case config.BackupDriverS3:
		t, err := NewS3Target(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown backup driver %q", cfg.Driver)
	}
}

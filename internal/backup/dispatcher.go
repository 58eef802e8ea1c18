package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/notesync/internal/models"
	"github.com/prudhvinik1/notesync/internal/repositories"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const contentType = "application/json"

// ItemSource loads the item being backed up.
type ItemSource interface {
	Get(ctx context.Context, id uuid.UUID, accountID uuid.UUID) (*models.Item, error)
}

type Options struct {
	Workers    int
	QueueSize  int
	MaxRetries uint64
	RetryBase  time.Duration
	// Timeout bounds a single upload attempt and the final drain.
	Timeout time.Duration
}

type job struct {
	accountID uuid.UUID
	itemID    uuid.UUID
}

// Snapshot is the JSON document written for each backup.
type Snapshot struct {
	AccountUUID uuid.UUID    `json:"account_uuid"`
	BackedUpAt  time.Time    `json:"backed_up_at"`
	Item        *models.Item `json:"item"`
}

// Dispatcher queues backup jobs and uploads them from a worker pool.
type Dispatcher struct {
	items  ItemSource
	target Target
	logger *zap.Logger
	opts   Options
	jobs   chan job
	now    func() time.Time
}

func NewDispatcher(items ItemSource, target Target, logger *zap.Logger, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 100 * time.Millisecond
	}
	return &Dispatcher{
		items:  items,
		target: target,
		logger: logger,
		opts:   opts,
		jobs:   make(chan job, opts.QueueSize),
		now:    time.Now,
	}
}

// Enqueue never blocks. It returns false when the queue is full.
func (d *Dispatcher) Enqueue(accountID, itemID uuid.UUID) bool {
	select {
	case d.jobs <- job{accountID: accountID, itemID: itemID}:
		return true
	default:
		return false
	}
}

// Run processes jobs until ctx is cancelled, then uploads whatever is still
// queued before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.opts.Workers; i++ {
		g.Go(func() error {
			d.work(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	d.drain(context.WithoutCancel(ctx))
	return nil
}

// work stops taking jobs once ctx is done, but a job already taken runs to
// completion.
func (d *Dispatcher) work(ctx context.Context) {
	jobCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.jobs:
			d.handle(jobCtx, j)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	for {
		select {
		case j := <-d.jobs:
			d.handle(ctx, j)
		default:
			return
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, j job) {
	log := d.logger.With(
		zap.String("account_id", j.accountID.String()),
		zap.String("item_id", j.itemID.String()),
	)

	key, err := d.backup(ctx, j)
	if errors.Is(err, repositories.ErrNotFound) {
		log.Debug("item removed before backup ran")
		return
	}
	if err != nil {
		log.Error("backup failed", zap.Error(err))
		return
	}
	log.Debug("item backed up", zap.String("key", key))
}

func (d *Dispatcher) backup(ctx context.Context, j job) (string, error) {
	item, err := d.items.Get(ctx, j.itemID, j.accountID)
	if err != nil {
		return "", err
	}

	now := d.now().UTC()
	data, err := json.Marshal(Snapshot{AccountUUID: j.accountID, BackedUpAt: now, Item: item})
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	key := ObjectKey(j.accountID, j.itemID, now)

	b := retry.WithMaxRetries(d.opts.MaxRetries, retry.NewExponential(d.opts.RetryBase))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		putCtx := ctx
		if d.opts.Timeout > 0 {
			var cancel context.CancelFunc
			putCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
			defer cancel()
		}
		if err := d.target.Put(putCtx, key, data); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// ObjectKey lays backups out as <account>/<item>/<timestamp>.json so every
// backup of an item is kept.
func ObjectKey(accountID, itemID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s.json", accountID, itemID, at.UTC().Format("20060102T150405.000000Z"))
}

// Package reconcile retries node daemon deletes that failed after the local
// records were already cleaned up. Failed deletes are queued in the store and
// replayed by a background consumer until they succeed or exhaust their
// attempt budget.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trockboppro/v4panel/internal/panel/model"
	"github.com/trockboppro/v4panel/internal/panel/node"
	"github.com/trockboppro/v4panel/internal/panel/store"
)

// Consumer drains the pending-delete queue on a fixed interval.
type Consumer struct {
	store       store.Store
	node        *node.Client
	interval    time.Duration
	maxAttempts int
}

func NewConsumer(s store.Store, nc *node.Client, interval time.Duration, maxAttempts int) *Consumer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Consumer{store: s, node: nc, interval: interval, maxAttempts: maxAttempts}
}

// Enqueue records a failed remote delete for asynchronous retry.
func Enqueue(ctx context.Context, s store.Store, pd model.PendingDelete) error {
	queue, err := loadQueue(ctx, s)
	if err != nil {
		return err
	}
	for _, q := range queue {
		if q.ContainerID == pd.ContainerID {
			return nil // already queued
		}
	}
	if pd.FirstFailedAt.IsZero() {
		pd.FirstFailedAt = time.Now()
	}
	return saveQueue(ctx, s, append(queue, pd))
}

// Start runs the consumer until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("pending delete reconciliation failed")
			}
		}
	}
}

// RunOnce replays every queued delete. Entries whose delete succeeds, whose
// daemon no longer knows the container, or whose attempt budget is exhausted
// leave the queue; the rest stay with an incremented attempt count.
func (c *Consumer) RunOnce(ctx context.Context) error {
	queue, err := loadQueue(ctx, c.store)
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		return nil
	}

	var remaining []model.PendingDelete
	for _, pd := range queue {
		err := c.remoteDelete(ctx, pd)
		if err == nil {
			log.Info().Str("container", pd.ContainerID).Str("node", pd.Node.ID).Msg("pending remote delete confirmed")
			continue
		}
		pd.Attempts++
		if pd.Attempts >= c.maxAttempts {
			log.Error().Err(err).
				Str("container", pd.ContainerID).
				Str("node", pd.Node.ID).
				Int("attempts", pd.Attempts).
				Msg("pending remote delete abandoned after attempt budget")
			continue
		}
		log.Warn().Err(err).Str("container", pd.ContainerID).Int("attempts", pd.Attempts).Msg("pending remote delete still failing")
		remaining = append(remaining, pd)
	}
	return saveQueue(ctx, c.store, remaining)
}

func (c *Consumer) remoteDelete(ctx context.Context, pd model.PendingDelete) error {
	_, err := c.node.Call(ctx, pd.Node, http.MethodDelete, "/instances/"+pd.ContainerID, nil)
	if rce, ok := err.(*model.RemoteCallError); ok && rce.Status == http.StatusNotFound {
		// daemon already forgot the container, nothing left to delete
		return nil
	}
	return err
}

func loadQueue(ctx context.Context, s store.Store) ([]model.PendingDelete, error) {
	data, err := s.Get(ctx, model.PendingDeletesKey)
	if err != nil {
		if err == store.ErrKeyNotFound {
			return nil, nil
		}
		return nil, &model.StorageError{Key: model.PendingDeletesKey, Err: err}
	}
	var queue []model.PendingDelete
	if err := json.Unmarshal(data, &queue); err != nil {
		return nil, fmt.Errorf("decode pending deletes: %w", err)
	}
	return queue, nil
}

func saveQueue(ctx context.Context, s store.Store, queue []model.PendingDelete) error {
	if len(queue) == 0 {
		if err := s.Delete(ctx, model.PendingDeletesKey); err != nil {
			return &model.StorageError{Key: model.PendingDeletesKey, Err: err}
		}
		return nil
	}
	data, err := json.Marshal(queue)
	if err != nil {
		return err
	}
	if err := s.Set(ctx, model.PendingDeletesKey, data); err != nil {
		return &model.StorageError{Key: model.PendingDeletesKey, Err: err}
	}
	return nil
}

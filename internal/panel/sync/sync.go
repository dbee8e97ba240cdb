// Package sync maintains the triple-write protocol for instance records: the
// per-instance key, the owning user's list and the global list must hold
// field-identical copies whenever no mutation is in flight.
package sync

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/trockboppro/v4panel/internal/panel/model"
	"github.com/trockboppro/v4panel/internal/panel/store"
)

// Synchronizer commits a mutated instance record to all three storage
// locations. It does not lock across requests; concurrent writers to the same
// instance are last-writer-wins per key, which version stamping surfaces as a
// logged conflict rather than preventing.
type Synchronizer struct {
	store store.Store
}

func New(s store.Store) *Synchronizer {
	return &Synchronizer{store: s}
}

// Load reads the record stored under the given container id.
func (s *Synchronizer) Load(ctx context.Context, containerID string) (*model.Instance, error) {
	key := model.InstanceKey(containerID)
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if err == store.ErrKeyNotFound {
			return nil, &model.NotFoundError{Kind: "instance", ID: containerID}
		}
		return nil, &model.StorageError{Key: key, Err: err}
	}
	return model.DecodeInstance(data)
}

// Sync writes rec to its per-instance key, the owner's list and the global
// list, in that order. oldKeyID is the container id the caller loaded the
// record under; when rec.ContainerID differs the per-instance key is
// relocated (new key written, old key deleted, batched where the store
// supports it). Steps after the initiating write are not rolled back on
// failure; the error is surfaced for the caller to compensate.
func (s *Synchronizer) Sync(ctx context.Context, oldKeyID string, rec *model.Instance) (*model.Instance, error) {
	s.warnOnConflict(ctx, oldKeyID, rec)
	rec.Version++

	if err := s.writeInstanceKey(ctx, oldKeyID, rec); err != nil {
		// single retry for the initiating write
		log.Warn().Err(err).Str("instance", rec.ID).Msg("instance key write failed, retrying once")
		if err := s.writeInstanceKey(ctx, oldKeyID, rec); err != nil {
			return nil, err
		}
	}

	if err := s.upsertInList(ctx, model.UserInstancesKey(rec.User), rec); err != nil {
		log.Error().Err(err).Str("instance", rec.ID).Msg("user list update failed after instance key write")
		return nil, err
	}
	if err := s.upsertInList(ctx, model.GlobalInstancesKey, rec); err != nil {
		log.Error().Err(err).Str("instance", rec.ID).Msg("global list update failed after user list write")
		return nil, err
	}
	return rec, nil
}

// Remove clears the record from all three locations and deletes the attached
// workflow blob.
func (s *Synchronizer) Remove(ctx context.Context, rec *model.Instance) error {
	b := s.store.Batch()
	b.Delete(model.InstanceKey(rec.ContainerID))
	b.Delete(model.WorkflowKey(rec.ID))
	if err := b.Write(ctx); err != nil {
		return &model.StorageError{Key: model.InstanceKey(rec.ContainerID), Err: err}
	}
	if err := s.pruneFromList(ctx, model.UserInstancesKey(rec.User), rec.ID); err != nil {
		return err
	}
	return s.pruneFromList(ctx, model.GlobalInstancesKey, rec.ID)
}

func (s *Synchronizer) warnOnConflict(ctx context.Context, oldKeyID string, rec *model.Instance) {
	data, err := s.store.Get(ctx, model.InstanceKey(oldKeyID))
	if err != nil {
		return
	}
	stored, err := model.DecodeInstance(data)
	if err != nil {
		return
	}
	if stored.Version != rec.Version {
		log.Warn().
			Str("instance", rec.ID).
			Int64("loaded_version", rec.Version).
			Int64("stored_version", stored.Version).
			Msg("concurrent write detected, last writer wins")
	}
}

func (s *Synchronizer) writeInstanceKey(ctx context.Context, oldKeyID string, rec *model.Instance) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	newKey := model.InstanceKey(rec.ContainerID)
	if rec.ContainerID == oldKeyID {
		if err := s.store.Set(ctx, newKey, data); err != nil {
			return &model.StorageError{Key: newKey, Err: err}
		}
		return nil
	}
	// key relocation: new key must be durable before the old one goes away,
	// so a crash leaves a transient duplicate instead of a lost record
	b := s.store.Batch()
	b.Set(newKey, data)
	b.Delete(model.InstanceKey(oldKeyID))
	if err := b.Write(ctx); err != nil {
		return &model.StorageError{Key: newKey, Err: err}
	}
	return nil
}

// upsertInList replaces the entry whose stable Id matches, or appends when no
// entry is found, e.g. after a concurrent delete already pruned the list.
func (s *Synchronizer) upsertInList(ctx context.Context, key string, rec *model.Instance) error {
	list, err := s.loadList(ctx, key)
	if err != nil {
		return err
	}
	replaced := false
	for i, in := range list {
		if in.ID == rec.ID {
			list[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, rec)
	}
	return s.saveList(ctx, key, list)
}

func (s *Synchronizer) pruneFromList(ctx context.Context, key, instanceID string) error {
	list, err := s.loadList(ctx, key)
	if err != nil {
		return err
	}
	out := list[:0]
	for _, in := range list {
		if in.ID != instanceID {
			out = append(out, in)
		}
	}
	return s.saveList(ctx, key, out)
}

func (s *Synchronizer) loadList(ctx context.Context, key string) ([]*model.Instance, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if err == store.ErrKeyNotFound {
			return nil, nil
		}
		return nil, &model.StorageError{Key: key, Err: err}
	}
	return model.DecodeInstanceList(data)
}

func (s *Synchronizer) saveList(ctx context.Context, key string, list []*model.Instance) error {
	if list == nil {
		list = []*model.Instance{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, key, data); err != nil {
		return &model.StorageError{Key: key, Err: err}
	}
	return nil
}

// List returns the instances stored under a user or global list key.
func (s *Synchronizer) List(ctx context.Context, key string) ([]*model.Instance, error) {
	return s.loadList(ctx, key)
}

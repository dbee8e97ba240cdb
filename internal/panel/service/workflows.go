package service

import (
	"context"
	"encoding/json"

	"github.com/trockboppro/v4panel/internal/panel/model"
	"github.com/trockboppro/v4panel/internal/panel/store"
)

// Workflows are opaque automation blobs owned by the scheduling layer; this
// service only stores them per instance and clears them on instance delete.

// SetWorkflow attaches a workflow blob to an instance the caller may access.
func (s *Service) SetWorkflow(ctx context.Context, caller *model.User, containerID string, blob json.RawMessage) error {
	rec, err := s.Get(ctx, caller, containerID)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, model.WorkflowKey(rec.ID), blob); err != nil {
		return &model.StorageError{Key: model.WorkflowKey(rec.ID), Err: err}
	}
	return nil
}

// GetWorkflow returns the workflow blob for an instance, or NotFoundError.
func (s *Service) GetWorkflow(ctx context.Context, caller *model.User, containerID string) (json.RawMessage, error) {
	rec, err := s.Get(ctx, caller, containerID)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Get(ctx, model.WorkflowKey(rec.ID))
	if err != nil {
		if err == store.ErrKeyNotFound {
			return nil, &model.NotFoundError{Kind: "workflow", ID: rec.ID}
		}
		return nil, &model.StorageError{Key: model.WorkflowKey(rec.ID), Err: err}
	}
	return data, nil
}

package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/trockboppro/v4panel/internal/panel/model"
	"github.com/trockboppro/v4panel/internal/panel/store"
)

// CreateNodeRequest registers a remote daemon.
type CreateNodeRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address" binding:"required"`
	Port    int    `json:"port" binding:"required"`
	APIKey  string `json:"apiKey" binding:"required"`
}

// CreateNode stores a node record and adds it to the node id list.
func (s *Service) CreateNode(ctx context.Context, caller *model.User, req CreateNodeRequest) (*model.Node, error) {
	if !caller.Admin {
		return nil, &model.AuthorizationError{Msg: "only admins may manage nodes"}
	}
	n := &model.Node{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Address:   req.Address,
		Port:      req.Port,
		APIKey:    req.APIKey,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	ids, err := s.nodeIDs(ctx)
	if err != nil {
		return nil, err
	}
	listData, err := json.Marshal(append(ids, n.ID))
	if err != nil {
		return nil, err
	}
	b := s.store.Batch()
	b.Set(model.NodeKey(n.ID), data)
	b.Set(model.NodeListKey, listData)
	if err := b.Write(ctx); err != nil {
		return nil, &model.StorageError{Key: model.NodeKey(n.ID), Err: err}
	}
	log.Info().Str("node", n.ID).Str("address", n.Address).Msg("node registered")
	return n, nil
}

// GetNode loads a node record.
func (s *Service) GetNode(ctx context.Context, caller *model.User, id string) (*model.Node, error) {
	data, err := s.store.Get(ctx, model.NodeKey(id))
	if err != nil {
		if err == store.ErrKeyNotFound {
			return nil, &model.NotFoundError{Kind: "node", ID: id}
		}
		return nil, &model.StorageError{Key: model.NodeKey(id), Err: err}
	}
	var n model.Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNodes returns every registered node. Admin only, the records carry api
// keys.
func (s *Service) ListNodes(ctx context.Context, caller *model.User) ([]*model.Node, error) {
	if !caller.Admin {
		return nil, &model.AuthorizationError{Msg: "only admins may manage nodes"}
	}
	ids, err := s.nodeIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Node, 0, len(ids))
	for _, id := range ids {
		n, err := s.GetNode(ctx, caller, id)
		if err != nil {
			if _, ok := err.(*model.NotFoundError); ok {
				continue // id list ahead of a deleted record
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// DeleteNode removes a node record and its id list entry.
func (s *Service) DeleteNode(ctx context.Context, caller *model.User, id string) error {
	if !caller.Admin {
		return &model.AuthorizationError{Msg: "only admins may manage nodes"}
	}
	if _, err := s.GetNode(ctx, caller, id); err != nil {
		return err
	}
	ids, err := s.nodeIDs(ctx)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, v := range ids {
		if v != id {
			kept = append(kept, v)
		}
	}
	listData, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	b := s.store.Batch()
	b.Delete(model.NodeKey(id))
	b.Set(model.NodeListKey, listData)
	if err := b.Write(ctx); err != nil {
		return &model.StorageError{Key: model.NodeKey(id), Err: err}
	}
	return nil
}

func (s *Service) nodeIDs(ctx context.Context) ([]string, error) {
	data, err := s.store.Get(ctx, model.NodeListKey)
	if err != nil {
		if err == store.ErrKeyNotFound {
			return nil, nil
		}
		return nil, &model.StorageError{Key: model.NodeListKey, Err: err}
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

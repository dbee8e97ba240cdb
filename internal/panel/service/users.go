package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/trockboppro/v4panel/internal/panel/model"
	"github.com/trockboppro/v4panel/internal/panel/store"
)

// CreateUserRequest registers an account with a fresh api token.
type CreateUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Admin bool   `json:"admin"`
}

// CreateUser stores a user record plus the token index used by auth.
func (s *Service) CreateUser(ctx context.Context, caller *model.User, req CreateUserRequest) (*model.User, error) {
	if !caller.Admin {
		return nil, &model.AuthorizationError{Msg: "only admins may manage users"}
	}
	u := &model.User{
		ID:    uuid.NewString(),
		Name:  req.Name,
		Token: uuid.NewString(),
		Admin: req.Admin,
	}
	data, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	b := s.store.Batch()
	b.Set(model.UserKey(u.ID), data)
	b.Set(model.UserTokenKey(u.Token), []byte(u.ID))
	if err := b.Write(ctx); err != nil {
		return nil, &model.StorageError{Key: model.UserKey(u.ID), Err: err}
	}
	return u, nil
}

// GetUser loads a user record by id.
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	data, err := s.store.Get(ctx, model.UserKey(id))
	if err != nil {
		if err == store.ErrKeyNotFound {
			return nil, &model.NotFoundError{Kind: "user", ID: id}
		}
		return nil, &model.StorageError{Key: model.UserKey(id), Err: err}
	}
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ResolveToken maps a bearer token to its user record.
func (s *Service) ResolveToken(ctx context.Context, token string) (*model.User, error) {
	id, err := s.store.Get(ctx, model.UserTokenKey(token))
	if err != nil {
		if err == store.ErrKeyNotFound {
			return nil, &model.AuthorizationError{Msg: "unknown token"}
		}
		return nil, &model.StorageError{Key: model.UserTokenKey(token), Err: err}
	}
	return s.GetUser(ctx, string(id))
}

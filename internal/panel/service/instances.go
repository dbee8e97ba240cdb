package service

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/trockboppro/v4panel/internal/panel/model"
	"github.com/trockboppro/v4panel/internal/panel/node"
	"github.com/trockboppro/v4panel/internal/panel/reconcile"
	instsync "github.com/trockboppro/v4panel/internal/panel/sync"
	"github.com/trockboppro/v4panel/internal/panel/store"
)

// Service implements the instance mutation handlers. Each operation
// validates input, authorizes the caller, optionally calls the owning node
// daemon, then commits through the Synchronizer. A remote failure aborts
// before any local write, with Delete as the one documented exception.
type Service struct {
	store store.Store
	sync  *instsync.Synchronizer
	node  *node.Client
}

func New(s store.Store, nc *node.Client) *Service {
	return &Service{store: s, sync: instsync.New(s), node: nc}
}

// Sync exposes the synchronizer for wiring (console relay, api reads).
func (s *Service) Sync() *instsync.Synchronizer { return s.sync }

// DeployRequest carries everything needed to create an instance on a node.
type DeployRequest struct {
	Name   string   `json:"name" binding:"required"`
	Image  string   `json:"image" binding:"required"`
	Memory int64    `json:"memory" binding:"required"`
	CPU    int64    `json:"cpu" binding:"required"`
	Disk   int64    `json:"disk"`
	Ports  []string `json:"ports"`
	Env    []string `json:"env"`
	NodeID string   `json:"nodeId" binding:"required"`
	UserID string   `json:"userId" binding:"required"`
}

// Deploy creates the container on the target node and writes the new record
// to all three storage locations.
func (s *Service) Deploy(ctx context.Context, caller *model.User, req DeployRequest) (*model.Instance, error) {
	if !caller.Admin {
		return nil, &model.AuthorizationError{Msg: "only admins may deploy instances"}
	}
	n, err := s.GetNode(ctx, caller, req.NodeID)
	if err != nil {
		return nil, err
	}

	resp, err := s.node.Call(ctx, n.Ref(), http.MethodPost, "/instances/create", map[string]any{
		"name":   req.Name,
		"image":  req.Image,
		"memory": req.Memory,
		"cpu":    req.CPU,
		"disk":   req.Disk,
		"ports":  req.Ports,
		"env":    req.Env,
	})
	if err != nil {
		return nil, err
	}
	containerID, err := node.DecodeContainerID(resp)
	if err != nil {
		return nil, &model.RemoteCallError{Op: "POST /instances/create", Err: err}
	}

	rec := &model.Instance{
		ID:          uuid.NewString(),
		ContainerID: containerID,
		Name:        req.Name,
		Image:       req.Image,
		Memory:      req.Memory,
		CPU:         req.CPU,
		Disk:        req.Disk,
		Ports:       req.Ports,
		Env:         req.Env,
		Node:        n.Ref(),
		User:        req.UserID,
		State:       model.StateInstalling,
		CreatedAt:   time.Now(),
	}
	committed, err := s.sync.Sync(ctx, containerID, rec)
	if err != nil {
		return nil, err
	}
	log.Info().Str("instance", committed.ID).Str("container", containerID).Str("node", n.ID).Msg("instance deployed")
	return committed, nil
}

// Get loads an instance the caller may access.
func (s *Service) Get(ctx context.Context, caller *model.User, containerID string) (*model.Instance, error) {
	rec, err := s.sync.Load(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(rec) {
		return nil, &model.AuthorizationError{Msg: "instance belongs to another user"}
	}
	return rec, nil
}

// List returns the caller's instances, or every instance for admins.
func (s *Service) List(ctx context.Context, caller *model.User) ([]*model.Instance, error) {
	key := model.UserInstancesKey(caller.ID)
	if caller.Admin {
		key = model.GlobalInstancesKey
	}
	list, err := s.sync.List(ctx, key)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.Instance{}
	}
	return list, nil
}

// EditRequest updates resource fields. Nil pointers leave the field alone.
type EditRequest struct {
	Image  *string `json:"image"`
	Memory *int64  `json:"memory"`
	CPU    *int64  `json:"cpu"`
}

// Edit pushes changed fields to the daemon, which rebuilds the container
// under a new id, then relocates the record to the new key.
func (s *Service) Edit(ctx context.Context, caller *model.User, containerID string, req EditRequest) (*model.Instance, error) {
	if req.Image == nil && req.Memory == nil && req.CPU == nil {
		return nil, &model.ValidationError{Msg: "edit request changes nothing"}
	}
	rec, err := s.loadUnsuspended(ctx, caller, containerID)
	if err != nil {
		return nil, err
	}

	work := rec.Clone()
	body := map[string]any{}
	if req.Image != nil {
		work.Image = *req.Image
		body["image"] = *req.Image
	}
	if req.Memory != nil {
		work.Memory = *req.Memory
		body["memory"] = *req.Memory
	}
	if req.CPU != nil {
		work.CPU = *req.CPU
		body["cpu"] = *req.CPU
	}

	resp, err := s.node.Call(ctx, rec.Node, http.MethodPut, "/instances/edit/"+containerID, body)
	if err != nil {
		return nil, err
	}
	newID, err := node.DecodeContainerID(resp)
	if err != nil {
		return nil, &model.RemoteCallError{Op: "PUT /instances/edit/" + containerID, Err: err}
	}
	work.ContainerID = newID

	committed, err := s.sync.Sync(ctx, containerID, work)
	if err != nil {
		return nil, err
	}
	log.Info().Str("instance", committed.ID).Str("old_container", containerID).Str("container", newID).Msg("instance edited")
	return committed, nil
}

// Rename updates only the display name; no remote call.
func (s *Service) Rename(ctx context.Context, caller *model.User, containerID, name string) (*model.Instance, error) {
	if name == "" {
		return nil, &model.ValidationError{Msg: "name must not be empty"}
	}
	rec, err := s.Get(ctx, caller, containerID)
	if err != nil {
		return nil, err
	}
	work := rec.Clone()
	work.Name = name
	return s.sync.Sync(ctx, containerID, work)
}

// Redeploy rebuilds the container from a new image.
func (s *Service) Redeploy(ctx context.Context, caller *model.User, containerID, image string) (*model.Instance, error) {
	if image == "" {
		return nil, &model.ValidationError{Msg: "image must not be empty"}
	}
	rec, err := s.loadUnsuspended(ctx, caller, containerID)
	if err != nil {
		return nil, err
	}

	resp, err := s.node.Call(ctx, rec.Node, http.MethodPost, "/instances/redeploy/"+containerID, map[string]any{"image": image})
	if err != nil {
		return nil, err
	}
	newID, err := node.DecodeContainerID(resp)
	if err != nil {
		return nil, &model.RemoteCallError{Op: "POST /instances/redeploy/" + containerID, Err: err}
	}

	work := rec.Clone()
	work.ContainerID = newID
	work.Image = image
	committed, err := s.sync.Sync(ctx, containerID, work)
	if err != nil {
		return nil, err
	}
	log.Info().Str("instance", committed.ID).Str("container", newID).Str("image", image).Msg("instance redeployed")
	return committed, nil
}

// Reinstall wipes and reinstalls the container. Refuses when required record
// fields are missing, before any remote call.
func (s *Service) Reinstall(ctx context.Context, caller *model.User, containerID string) (*model.Instance, error) {
	rec, err := s.loadUnsuspended(ctx, caller, containerID)
	if err != nil {
		return nil, err
	}
	if missing := rec.MissingFields(); len(missing) > 0 {
		return nil, &model.ValidationError{Msg: "instance record incomplete", Missing: missing}
	}

	resp, err := s.node.Call(ctx, rec.Node, http.MethodPost, "/instances/reinstall/"+containerID, nil)
	if err != nil {
		return nil, err
	}
	newID, err := node.DecodeContainerID(resp)
	if err != nil {
		return nil, &model.RemoteCallError{Op: "POST /instances/reinstall/" + containerID, Err: err}
	}

	work := rec.Clone()
	work.ContainerID = newID
	work.State = model.StateRunning
	committed, err := s.sync.Sync(ctx, containerID, work)
	if err != nil {
		return nil, err
	}
	log.Info().Str("instance", committed.ID).Str("container", newID).Msg("instance reinstalled")
	return committed, nil
}

// Suspend flips the suspended flag on. Admin only; idempotent.
func (s *Service) Suspend(ctx context.Context, caller *model.User, containerID string) (*model.Instance, error) {
	return s.setSuspended(ctx, caller, containerID, true)
}

// Unsuspend flips the suspended flag off. Admin only; idempotent.
func (s *Service) Unsuspend(ctx context.Context, caller *model.User, containerID string) (*model.Instance, error) {
	return s.setSuspended(ctx, caller, containerID, false)
}

func (s *Service) setSuspended(ctx context.Context, caller *model.User, containerID string, suspended bool) (*model.Instance, error) {
	if !caller.Admin {
		return nil, &model.AuthorizationError{Msg: "only admins may suspend or unsuspend"}
	}
	rec, err := s.sync.Load(ctx, containerID)
	if err != nil {
		return nil, err
	}
	work := rec.Clone()
	work.Suspended = suspended
	now := time.Now()
	if suspended {
		work.SuspendedAt = &now
	} else {
		work.UnsuspendedAt = &now
	}
	return s.sync.Sync(ctx, containerID, work)
}

// Delete removes the instance everywhere. The daemon call is best-effort:
// when it fails the local records are still cleared and the delete is queued
// for asynchronous reconciliation.
func (s *Service) Delete(ctx context.Context, caller *model.User, containerID string) error {
	rec, err := s.Get(ctx, caller, containerID)
	if err != nil {
		return err
	}

	if _, err := s.node.Call(ctx, rec.Node, http.MethodDelete, "/instances/"+containerID, nil); err != nil {
		log.Warn().Err(err).Str("instance", rec.ID).Str("container", containerID).Msg("remote delete failed, queueing for reconciliation")
		if qerr := reconcile.Enqueue(ctx, s.store, model.PendingDelete{ContainerID: containerID, Node: rec.Node}); qerr != nil {
			log.Error().Err(qerr).Str("container", containerID).Msg("failed to queue pending delete")
		}
	}

	if err := s.sync.Remove(ctx, rec); err != nil {
		return err
	}
	log.Info().Str("instance", rec.ID).Str("container", containerID).Msg("instance deleted")
	return nil
}

// State fetches the live state from the daemon and stamps it on the record.
func (s *Service) State(ctx context.Context, caller *model.User, containerID string) (string, error) {
	rec, err := s.Get(ctx, caller, containerID)
	if err != nil {
		return "", err
	}
	state, err := s.node.GetState(ctx, rec.Node, containerID)
	if err != nil {
		return "", err
	}
	if state != rec.State {
		work := rec.Clone()
		work.State = state
		if _, err := s.sync.Sync(ctx, containerID, work); err != nil {
			log.Error().Err(err).Str("instance", rec.ID).Msg("failed to persist refreshed state")
		}
	}
	return state, nil
}

// SetState forwards a desired state to the daemon and records it.
func (s *Service) SetState(ctx context.Context, caller *model.User, containerID, state string) (*model.Instance, error) {
	rec, err := s.loadUnsuspended(ctx, caller, containerID)
	if err != nil {
		return nil, err
	}
	if err := s.node.SetState(ctx, rec.Node, containerID, state); err != nil {
		return nil, err
	}
	work := rec.Clone()
	work.State = state
	return s.sync.Sync(ctx, containerID, work)
}

func (s *Service) loadUnsuspended(ctx context.Context, caller *model.User, containerID string) (*model.Instance, error) {
	rec, err := s.Get(ctx, caller, containerID)
	if err != nil {
		return nil, err
	}
	if rec.Suspended {
		return nil, &model.AuthorizationError{Msg: "instance is suspended"}
	}
	return rec, nil
}

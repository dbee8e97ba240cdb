package node

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/trockboppro/v4panel/internal/panel/model"
)

// GetState asks the daemon for an instance's current state string.
func (c *Client) GetState(ctx context.Context, n model.NodeRef, containerID string) (string, error) {
	resp, err := c.Call(ctx, n, http.MethodGet, fmt.Sprintf("/instances/%s/states/get", containerID), nil)
	if err != nil {
		return "", err
	}
	var out struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("decode state response: %w", err)
	}
	if out.State == "" {
		return model.StateUnknown, nil
	}
	return out.State, nil
}

// SetState pushes a desired state to the daemon.
func (c *Client) SetState(ctx context.Context, n model.NodeRef, containerID, state string) error {
	_, err := c.Call(ctx, n, http.MethodPost, fmt.Sprintf("/instances/%s/states/set/%s", containerID, state), nil)
	return err
}

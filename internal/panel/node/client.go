// Package node talks to remote daemons. Every call authenticates with HTTP
// basic auth: fixed username, per-node api key as password.
package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trockboppro/v4panel/internal/panel/model"
)

// BasicAuthUser is the fixed username daemons expect on every call.
const BasicAuthUser = "v4panel"

// Client issues HTTP calls against node daemons. Read calls use the short
// timeout, mutating calls the long one; each call is retried exactly once on
// transport failure or upstream 5xx.
type Client struct {
	http          *http.Client
	callTimeout   time.Duration
	mutateTimeout time.Duration
}

// Response is the decoded daemon reply for instance mutations.
type Response struct {
	Status int
	Body   []byte
}

// NewClient builds a client with the given read and mutate timeouts. Zero
// durations fall back to 5s / 30s.
func NewClient(callTimeout, mutateTimeout time.Duration) *Client {
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	if mutateTimeout <= 0 {
		mutateTimeout = 30 * time.Second
	}
	return &Client{
		http:          &http.Client{},
		callTimeout:   callTimeout,
		mutateTimeout: mutateTimeout,
	}
}

// Validate fails fast when a node descriptor is unusable; no call is issued
// for a node missing address, port or api key.
func Validate(n model.NodeRef) error {
	if n.Address == "" || n.Port == 0 || n.APIKey == "" {
		return &model.NodeConfigurationError{
			Msg: fmt.Sprintf("node %q record is missing address, port or apiKey", n.ID),
		}
	}
	return nil
}

// Call issues method path against the node. body is JSON-encoded when non-nil.
// 4xx replies surface immediately; transport errors and 5xx replies get one
// retry before the error is returned.
func (c *Client) Call(ctx context.Context, n model.NodeRef, method, path string, body any) (*Response, error) {
	if err := Validate(n); err != nil {
		return nil, err
	}

	timeout := c.callTimeout
	if method != http.MethodGet {
		timeout = c.mutateTimeout
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	op := fmt.Sprintf("%s %s", method, path)
	resp, err := c.do(ctx, n, method, path, payload, timeout)
	if err == nil && resp.Status < http.StatusInternalServerError {
		return checkStatus(op, resp)
	}
	if err != nil {
		log.Warn().Err(err).Str("node", n.ID).Str("op", op).Msg("node call failed, retrying once")
	} else {
		log.Warn().Int("status", resp.Status).Str("node", n.ID).Str("op", op).Msg("node returned 5xx, retrying once")
	}

	resp, err = c.do(ctx, n, method, path, payload, timeout)
	if err != nil {
		return nil, &model.RemoteCallError{Op: op, Timeout: isTimeout(err), Err: err}
	}
	return checkStatus(op, resp)
}

func (c *Client) do(ctx context.Context, n model.NodeRef, method, path string, payload []byte, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s:%d%s", n.Address, n.Port, path)
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(BasicAuthUser, n.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}

func checkStatus(op string, resp *Response) (*Response, error) {
	if resp.Status >= http.StatusBadRequest {
		return nil, &model.RemoteCallError{Op: op, Status: resp.Status}
	}
	return resp, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// DecodeContainerID extracts the container id a daemon returns after
// create/edit/redeploy/reinstall.
func DecodeContainerID(resp *Response) (string, error) {
	var out struct {
		ContainerID    string `json:"containerId"`
		NewContainerID string `json:"newContainerId"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("decode daemon response: %w", err)
	}
	if out.NewContainerID != "" {
		return out.NewContainerID, nil
	}
	if out.ContainerID != "" {
		return out.ContainerID, nil
	}
	return "", fmt.Errorf("daemon response carried no container id")
}

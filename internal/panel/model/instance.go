package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Instance states reported by node daemons.
const (
	StateUnknown    = "UNKNOWN"
	StateInstalling = "INSTALLING"
	StateRunning    = "RUNNING"
	StateStopped    = "STOPPED"
	StateFailed     = "FAILED"
)

// NodeRef identifies the remote daemon owning an instance. The apiKey is the
// basic-auth password for every call against that daemon.
type NodeRef struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	APIKey  string `json:"apiKey"`
}

// Instance is the canonical record for a managed remote server. It is stored
// as JSON under "<ContainerID>_instance" and duplicated into the owning
// user's list and the global list; the Synchronizer keeps the three copies
// field-identical.
type Instance struct {
	ID          string   `json:"id"`          // stable, never changes after deploy
	ContainerID string   `json:"containerId"` // storage key component, changes on edit/redeploy/reinstall
	Name        string   `json:"name"`
	Image       string   `json:"image"`
	Memory      int64    `json:"memory"`
	CPU         int64    `json:"cpu"`
	Disk        int64    `json:"disk"`
	Ports       []string `json:"ports"`
	Env         []string `json:"env"` // KEY=VALUE, order preserved
	Node        NodeRef  `json:"node"`
	User        string   `json:"user"` // owning user id
	Suspended   bool     `json:"suspended"`
	State       string   `json:"state"`

	// Version counts Synchronizer commits. Readers use it to detect lost
	// updates between the three storage locations; writes stay last-writer-wins.
	Version int64 `json:"version"`

	SuspendedAt   *time.Time `json:"suspendedAt,omitempty"`
	UnsuspendedAt *time.Time `json:"unsuspendedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// InstanceKey is the per-instance storage key for a container id.
func InstanceKey(containerID string) string { return containerID + "_instance" }

// UserInstancesKey is the storage key of a user's instance list.
func UserInstancesKey(userID string) string { return userID + "_instances" }

// GlobalInstancesKey holds every instance across all users.
const GlobalInstancesKey = "instances"

// WorkflowKey is the storage key of the workflow blob attached to an instance.
func WorkflowKey(instanceID string) string { return instanceID + "_workflow" }

// MissingFields returns the required-field names absent from the record, in a
// stable order. Reinstall and redeploy refuse to run when any are missing.
func (in *Instance) MissingFields() []string {
	var missing []string
	if in.ID == "" {
		missing = append(missing, "Id")
	}
	if in.ContainerID == "" {
		missing = append(missing, "ContainerId")
	}
	if in.Image == "" {
		missing = append(missing, "Image")
	}
	if in.Node.Address == "" || in.Node.Port == 0 || in.Node.APIKey == "" {
		missing = append(missing, "Node")
	}
	if in.User == "" {
		missing = append(missing, "User")
	}
	return missing
}

// Clone returns a deep copy so handlers can mutate a working record without
// touching the loaded one until Sync commits.
func (in *Instance) Clone() *Instance {
	cp := *in
	cp.Ports = append([]string(nil), in.Ports...)
	cp.Env = append([]string(nil), in.Env...)
	if in.SuspendedAt != nil {
		t := *in.SuspendedAt
		cp.SuspendedAt = &t
	}
	if in.UnsuspendedAt != nil {
		t := *in.UnsuspendedAt
		cp.UnsuspendedAt = &t
	}
	return &cp
}

// DecodeInstance parses a stored record. A historical migration left some
// records with a stray "suspended-flagg" field; it is read-tolerated here and
// dropped on the next write because encoding only knows the canonical fields.
func DecodeInstance(data []byte) (*Instance, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode instance: %w", err)
	}
	delete(raw, "suspended-flagg")
	clean, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("decode instance: %w", err)
	}
	var in Instance
	if err := json.Unmarshal(clean, &in); err != nil {
		return nil, fmt.Errorf("decode instance: %w", err)
	}
	if in.State == "" {
		in.State = StateUnknown
	}
	return &in, nil
}

// DecodeInstanceList parses a stored list, tolerating the same legacy field
// per entry.
func DecodeInstanceList(data []byte) ([]*Instance, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode instance list: %w", err)
	}
	out := make([]*Instance, 0, len(raws))
	for _, r := range raws {
		in, err := DecodeInstance(r)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

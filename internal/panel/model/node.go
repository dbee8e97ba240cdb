package model

import "time"

// Node is the admin-managed record for a remote daemon. Instances embed a
// NodeRef copied from this record at deploy time.
type Node struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Port      int       `json:"port"`
	APIKey    string    `json:"apiKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// NodeKey is the storage key for a node record.
func NodeKey(id string) string { return "node_" + id }

// NodeListKey holds the ids of all registered nodes.
const NodeListKey = "nodes"

// Ref returns the embedded reference stored inside instance records.
func (n *Node) Ref() NodeRef {
	return NodeRef{ID: n.ID, Address: n.Address, Port: n.Port, APIKey: n.APIKey}
}

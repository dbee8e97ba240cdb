package model

import "time"

// PendingDelete records a remote daemon delete that failed while the local
// records were already cleaned up. The reconcile consumer retries these
// asynchronously instead of dropping the failure.
type PendingDelete struct {
	ContainerID   string    `json:"containerId"`
	Node          NodeRef   `json:"node"`
	Attempts      int       `json:"attempts"`
	FirstFailedAt time.Time `json:"firstFailedAt"`
}

// PendingDeletesKey holds the queue of unconfirmed remote deletes.
const PendingDeletesKey = "pending_deletes"

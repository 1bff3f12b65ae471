// Package realtime carries table change cues between the API instances and the
// websocket streams that re-query on every cue.
package realtime

import (
	"context"
	"time"
)

// Tables published on the feed.
const (
	TableProfiles  = "profiles"
	TableRequests  = "swap_requests"
	TableBroadcast = "broadcast"
)

// Change operations.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ChangeEvent signals that a row in Table changed. Subscribers treat it as a
// cue to refetch, never as a delta. Message is only set on broadcasts.
type ChangeEvent struct {
	Table   string    `json:"table"`
	Op      string    `json:"op"`
	Key     string    `json:"key,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Feed distributes change events to subscribers of a table.
type Feed interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	// Subscribe delivers events for table until cancel is called or ctx ends.
	// The returned channel is closed once the subscription is torn down.
	Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, func(), error)
}

const subscriberBuffer = 16

// NewChange stamps a change event for table.
func NewChange(table, op, key string) ChangeEvent {
	return ChangeEvent{Table: table, Op: op, Key: key, At: time.Now().UTC()}
}

// NewBroadcast builds an admin broadcast event.
func NewBroadcast(message string) ChangeEvent {
	return ChangeEvent{Table: TableBroadcast, Op: OpInsert, Message: message, At: time.Now().UTC()}
}

// Channel returns the pub/sub channel carrying table's events.
func Channel(table string) string {
	return "changes:" + table
}

// Package store provides event delivery and replay primitives for the agent
// core. History persistence to disk is a collaborator's responsibility; the
// implementations here are memory-backed.
package store

import (
	"context"
	"errors"

	"AgentCore/pkg/engine/api"
)

// EventLog is an append-only event log for auditing and replay.
type EventLog interface {
	// Append adds an event to the log.
	Append(ctx context.Context, promptID string, e api.Event) error

	// Replay returns an event stream over everything recorded for a prompt.
	Replay(ctx context.Context, promptID string) (api.EventStream, error)
}

var ErrNotFound = errors.New("not found")

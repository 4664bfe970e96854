// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation persists chat turns per session.
//
// # Description
//
//	The store is an append-only log of turns keyed by session. The pipeline
//	appends the user turn and an assistant placeholder before generation,
//	then updates the placeholder exactly once with the final (or partial)
//	answer. Sequence numbers are per-session and monotonically increasing.
//
// # Assumptions
//   - One writer per session at a time. Concurrent sessions are fine; two
//     concurrent writers on the same session are not supported.
package conversation

import (
	"context"
	"errors"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrTurnNotFound reports an UpdateTurn against a missing (session, seq).
var ErrTurnNotFound = errors.New("conversation turn not found")

// Store persists conversation turns.
type Store interface {
	// AppendTurn adds a turn and returns its per-session sequence number.
	AppendTurn(ctx context.Context, sessionID, role, content string) (uint64, error)

	// UpdateTurn replaces the content of an existing turn.
	UpdateTurn(ctx context.Context, sessionID string, seq uint64, content string) error

	// History returns the most recent turns in chronological order, at
	// most limit entries (limit <= 0 means all).
	History(ctx context.Context, sessionID string, limit int) ([]datatypes.Turn, error)

	Close() error
}

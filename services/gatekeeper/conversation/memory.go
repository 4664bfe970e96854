// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

// MemoryStore keeps turns in process memory. For tests and offline runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]datatypes.Turn
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]datatypes.Turn)}
}

func (s *MemoryStore) AppendTurn(_ context.Context, sessionID, role, content string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := uint64(len(s.sessions[sessionID]) + 1)
	s.sessions[sessionID] = append(s.sessions[sessionID], datatypes.Turn{
		SessionID: sessionID,
		Seq:       seq,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	return seq, nil
}

func (s *MemoryStore) UpdateTurn(_ context.Context, sessionID string, seq uint64, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.sessions[sessionID]
	for i := range turns {
		if turns[i].Seq == seq {
			turns[i].Content = content
			return nil
		}
	}
	return ErrTurnNotFound
}

func (s *MemoryStore) History(_ context.Context, sessionID string, limit int) ([]datatypes.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.sessions[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]datatypes.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

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
	"errors"
	"fmt"
	"testing"
)

// storeFactories lets every contract test run against both backends.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"badger": func(t *testing.T) Store {
			s, err := NewBadgerStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewBadgerStore: %v", err)
			}
			return s
		},
	}
}

// TestStore_AppendAndHistory verifies sequence assignment and chronological
// history across backends.
func TestStore_AppendAndHistory(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			seq1, err := s.AppendTurn(ctx, "sess", RoleUser, "hello")
			if err != nil {
				t.Fatalf("AppendTurn: %v", err)
			}
			seq2, _ := s.AppendTurn(ctx, "sess", RoleAssistant, "hi there")
			if seq1 != 1 || seq2 != 2 {
				t.Errorf("seqs = %d, %d; want 1, 2", seq1, seq2)
			}

			turns, err := s.History(ctx, "sess", 0)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if len(turns) != 2 {
				t.Fatalf("history length = %d, want 2", len(turns))
			}
			if turns[0].Role != RoleUser || turns[0].Content != "hello" {
				t.Errorf("turn 0 = %+v", turns[0])
			}
			if turns[1].Role != RoleAssistant {
				t.Errorf("turn 1 = %+v", turns[1])
			}
		})
	}
}

// TestStore_HistoryLimit verifies the most-recent-N window.
func TestStore_HistoryLimit(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				if _, err := s.AppendTurn(ctx, "sess", RoleUser, fmt.Sprintf("m%d", i)); err != nil {
					t.Fatalf("AppendTurn: %v", err)
				}
			}
			turns, err := s.History(ctx, "sess", 2)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if len(turns) != 2 || turns[0].Content != "m3" || turns[1].Content != "m4" {
				t.Errorf("limited history = %+v", turns)
			}
		})
	}
}

// TestStore_UpdateTurn verifies placeholder replacement and the missing-turn
// error.
func TestStore_UpdateTurn(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			seq, _ := s.AppendTurn(ctx, "sess", RoleAssistant, "...")
			if err := s.UpdateTurn(ctx, "sess", seq, "final answer"); err != nil {
				t.Fatalf("UpdateTurn: %v", err)
			}
			turns, _ := s.History(ctx, "sess", 0)
			if turns[0].Content != "final answer" {
				t.Errorf("content = %q", turns[0].Content)
			}

			if err := s.UpdateTurn(ctx, "sess", 99, "x"); !errors.Is(err, ErrTurnNotFound) {
				t.Errorf("missing turn error = %v, want ErrTurnNotFound", err)
			}
			if err := s.UpdateTurn(ctx, "other", 1, "x"); !errors.Is(err, ErrTurnNotFound) {
				t.Errorf("missing session error = %v, want ErrTurnNotFound", err)
			}
		})
	}
}

// TestStore_SessionsIsolated verifies per-session sequences and histories.
func TestStore_SessionsIsolated(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			seqA, _ := s.AppendTurn(ctx, "a", RoleUser, "for a")
			seqB, _ := s.AppendTurn(ctx, "b", RoleUser, "for b")
			if seqA != 1 || seqB != 1 {
				t.Errorf("sessions share a counter: %d, %d", seqA, seqB)
			}
			turnsA, _ := s.History(ctx, "a", 0)
			if len(turnsA) != 1 || turnsA[0].Content != "for a" {
				t.Errorf("history a = %+v", turnsA)
			}
		})
	}
}

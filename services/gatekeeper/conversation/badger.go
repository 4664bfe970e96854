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
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

// BadgerStore persists turns in an embedded Badger database.
//
// Keys: turn/<session>/<seq, 10-digit zero-padded> for turns, so a prefix
// scan yields chronological order; seq/<session> holds the per-session
// counter.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store at %s: %w", path, err)
	}
	slog.Info("opened conversation store", "backend", "badger", "path", path)
	return &BadgerStore{db: db}, nil
}

func turnKey(sessionID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("turn/%s/%010d", sessionID, seq))
}

func seqKey(sessionID string) []byte {
	return []byte("seq/" + sessionID)
}

func (s *BadgerStore) AppendTurn(_ context.Context, sessionID, role, content string) (uint64, error) {
	var seq uint64
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(seqKey(sessionID))
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				seq = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			seq = 0
		default:
			return err
		}
		seq++

		turn := datatypes.Turn{
			SessionID: sessionID,
			Seq:       seq,
			Role:      role,
			Content:   content,
			CreatedAt: time.Now(),
		}
		payload, err := json.Marshal(turn)
		if err != nil {
			return err
		}
		if err := txn.Set(turnKey(sessionID, seq), payload); err != nil {
			return err
		}
		var counter [8]byte
		binary.BigEndian.PutUint64(counter[:], seq)
		return txn.Set(seqKey(sessionID), counter[:])
	})
	if err != nil {
		return 0, fmt.Errorf("appending turn: %w", err)
	}
	return seq, nil
}

func (s *BadgerStore) UpdateTurn(_ context.Context, sessionID string, seq uint64, content string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := turnKey(sessionID, seq)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTurnNotFound
		}
		if err != nil {
			return err
		}
		var turn datatypes.Turn
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &turn)
		}); err != nil {
			return err
		}
		turn.Content = content
		payload, err := json.Marshal(turn)
		if err != nil {
			return err
		}
		return txn.Set(key, payload)
	})
	if errors.Is(err, ErrTurnNotFound) {
		return ErrTurnNotFound
	}
	if err != nil {
		return fmt.Errorf("updating turn: %w", err)
	}
	return nil
}

func (s *BadgerStore) History(_ context.Context, sessionID string, limit int) ([]datatypes.Turn, error) {
	var turns []datatypes.Turn
	prefix := []byte("turn/" + sessionID + "/")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var turn datatypes.Turn
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &turn)
			}); err != nil {
				return err
			}
			turns = append(turns, turn)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists conversations in an embedded BadgerDB database.
//
// The key layout is flat:
//
//	chat:<id>        -> Chat metadata (JSON)
//	turn:<id>:<seq>  -> one Turn (JSON), seq is a zero-padded counter
//
// Turns are appended under a chat-scoped sequence number so a prefix scan
// returns them in conversation order. License: BadgerDB is Apache 2.0
// licensed (github.com/dgraph-io/badger).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianSearch/services/gateway/datatypes"
)

const (
	chatPrefix = "chat:"
	turnPrefix = "turn:"

	// maxTitleLen bounds the chat title derived from the first user message.
	maxTitleLen = 80
)

// ErrChatNotFound is returned when a chat ID has no record.
var ErrChatNotFound = errors.New("chat not found")

// Chat is the stored metadata for one conversation.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FocusMode string    `json:"focusMode"`
	CreatedAt time.Time `json:"createdAt"`

	// NextSeq is the sequence number the next turn will take.
	NextSeq uint64 `json:"nextSeq"`
}

// Turn is one message within a chat, with the sources that grounded it when
// the role is assistant.
type Turn struct {
	Role    string                 `json:"role"`
	Content string                 `json:"content"`
	Sources []datatypes.SourceInfo `json:"sources,omitempty"`
}

// ChatStore reads and writes chats in BadgerDB.
//
// Thread Safety: safe for concurrent use. Badger transactions provide the
// isolation; the store keeps no state of its own.
type ChatStore struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens a persistent chat store at path, creating the directory if it
// does not exist.
//
// Outputs:
//
//	*ChatStore - The opened store. Caller must call Close() when done.
//	error - Non-nil if the directory or database cannot be opened.
func Open(path string, logger *slog.Logger) (*ChatStore, error) {
	if path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("create database directory %s: %w", path, err)
	}

	opts := badger.DefaultOptions(path)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &ChatStore{db: db}, nil
}

// OpenInMemory opens a store with no disk persistence. Data is lost when
// closed. Useful for testing.
func OpenInMemory() (*ChatStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &ChatStore{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *ChatStore) Close() error {
	return s.db.Close()
}

func chatKey(id string) []byte {
	return []byte(chatPrefix + id)
}

func turnKey(chatID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%012d", turnPrefix, chatID, seq))
}

// SaveTurn appends one turn to a chat, creating the chat record on first
// write. The chat title is derived from the first user message.
//
// Inputs:
//
//	chatID - Conversation identifier. Must not be empty.
//	focusMode - The focus mode the conversation runs under.
//	turn - The message to append.
//
// Outputs:
//
//	error - Non-nil if the transaction fails.
func (s *ChatStore) SaveTurn(chatID, focusMode string, turn Turn) error {
	if chatID == "" {
		return errors.New("chatID must not be empty")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		var chat Chat
		item, err := txn.Get(chatKey(chatID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			chat = Chat{
				ID:        chatID,
				Title:     deriveTitle(turn),
				FocusMode: focusMode,
				CreatedAt: time.Now().UTC(),
			}
		case err != nil:
			return fmt.Errorf("read chat %s: %w", chatID, err)
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &chat)
			}); err != nil {
				return fmt.Errorf("decode chat %s: %w", chatID, err)
			}
		}

		turnBytes, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		if err := txn.Set(turnKey(chatID, chat.NextSeq), turnBytes); err != nil {
			return fmt.Errorf("write turn: %w", err)
		}

		chat.NextSeq++
		chatBytes, err := json.Marshal(chat)
		if err != nil {
			return fmt.Errorf("encode chat: %w", err)
		}
		if err := txn.Set(chatKey(chatID), chatBytes); err != nil {
			return fmt.Errorf("write chat: %w", err)
		}
		return nil
	})
}

func deriveTitle(turn Turn) string {
	title := strings.TrimSpace(turn.Content)
	if title == "" {
		title = "New conversation"
	}
	if len(title) > maxTitleLen {
		// Trim on a rune boundary so a multi-byte character is never split.
		cut := maxTitleLen
		for cut > 0 && !utf8.RuneStart(title[cut]) {
			cut--
		}
		title = title[:cut]
	}
	return title
}

// ListChats returns metadata for every stored chat, newest first.
func (s *ChatStore) ListChats() ([]Chat, error) {
	var chats []Chat
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chatPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var chat Chat
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &chat)
			}); err != nil {
				return fmt.Errorf("decode chat %s: %w", it.Item().Key(), err)
			}
			chats = append(chats, chat)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Prefix iteration is key order; callers want recency.
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
	return chats, nil
}

// GetChat returns one chat's metadata and its turns in conversation order.
//
// Outputs:
//
//	Chat - The stored metadata.
//	[]Turn - All turns, oldest first.
//	error - ErrChatNotFound when the ID has no record.
func (s *ChatStore) GetChat(chatID string) (Chat, []Turn, error) {
	var chat Chat
	var turns []Turn
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(chatID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrChatNotFound
		}
		if err != nil {
			return fmt.Errorf("read chat %s: %w", chatID, err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &chat)
		}); err != nil {
			return fmt.Errorf("decode chat %s: %w", chatID, err)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(turnPrefix + chatID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var turn Turn
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &turn)
			}); err != nil {
				return fmt.Errorf("decode turn %s: %w", it.Item().Key(), err)
			}
			turns = append(turns, turn)
		}
		return nil
	})
	if err != nil {
		return Chat{}, nil, err
	}
	return chat, turns, nil
}

// DeleteChat removes a chat and all of its turns.
//
// Outputs:
//
//	error - ErrChatNotFound when the ID has no record.
func (s *ChatStore) DeleteChat(chatID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(chatKey(chatID)); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrChatNotFound
		} else if err != nil {
			return fmt.Errorf("read chat %s: %w", chatID, err)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(turnPrefix + chatID + ":")
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete turn %s: %w", key, err)
			}
		}
		return txn.Delete(chatKey(chatID))
	})
}

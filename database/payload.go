// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const (
	payloadKeyPrefix = "payload/"

	badgerGcInterval       = 5 * time.Minute
	badgerGcDiscardRatio   = 0.5
	badgerValueLogFileSize = 64 * 1024 * 1024
)

var ErrPayloadNotFound = errors.New("payload not found")

// PayloadStore keeps the opaque raw-call payloads attached to recovery
// proposals, keyed by kind and nonce. Uses an in-memory store when
// dataDir is empty, useful for testing.
type PayloadStore struct {
	db        *badger.DB
	logger    *slog.Logger
	gcTimer   *time.Timer
	gcTimerMu sync.Mutex
	closed    bool
}

func NewPayloadStore(
	dataDir string,
	logger *slog.Logger,
) (*PayloadStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var opts badger.Options
	if dataDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		payloadDir := filepath.Join(dataDir, "payload")
		opts = badger.DefaultOptions(payloadDir).
			WithValueLogFileSize(badgerValueLogFileSize)
	}
	opts = opts.WithLogger(newBadgerLogger(logger))
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	s := &PayloadStore{
		db:     db,
		logger: logger,
	}
	if dataDir != "" {
		s.scheduleGc()
	}
	return s, nil
}

func (s *PayloadStore) scheduleGc() {
	s.gcTimerMu.Lock()
	defer s.gcTimerMu.Unlock()
	if s.closed {
		return
	}
	s.gcTimer = time.AfterFunc(badgerGcInterval, func() {
		s.runGc()
		s.scheduleGc()
	})
}

func (s *PayloadStore) runGc() {
	if err := s.db.RunValueLogGC(badgerGcDiscardRatio); err != nil {
		// Nothing to collect is the usual case
		if !errors.Is(err, badger.ErrNoRewrite) {
			s.logger.Warn(
				"badger value log GC failure",
				"component", "database",
				"error", err,
			)
		}
	}
}

func payloadKey(kind string, nonce uint64) []byte {
	key := make([]byte, 0, len(payloadKeyPrefix)+len(kind)+9)
	key = append(key, []byte(payloadKeyPrefix)...)
	key = append(key, []byte(kind)...)
	key = append(key, '/')
	key = binary.BigEndian.AppendUint64(key, nonce)
	return key
}

// PutPayload stores the raw payload for a proposal
func (s *PayloadStore) PutPayload(
	kind string,
	nonce uint64,
	payload []byte,
) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(payloadKey(kind, nonce), payload)
	})
}

// GetPayload returns the stored payload for a proposal
func (s *PayloadStore) GetPayload(
	kind string,
	nonce uint64,
) ([]byte, error) {
	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(payloadKey(kind, nonce))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s/%d", ErrPayloadNotFound, kind, nonce)
			}
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// PayloadNonces returns the nonces with stored payloads for a kind, in
// ascending order
func (s *PayloadStore) PayloadNonces(kind string) ([]uint64, error) {
	prefix := payloadKey(kind, 0)
	prefix = prefix[:len(prefix)-8]
	var nonces []uint64
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = prefix
		iter := txn.NewIterator(iterOpts)
		defer iter.Close()
		for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
			key := iter.Item().Key()
			if len(key) < 8 {
				continue
			}
			nonces = append(
				nonces,
				binary.BigEndian.Uint64(key[len(key)-8:]),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nonces, nil
}

func (s *PayloadStore) Close() error {
	s.gcTimerMu.Lock()
	s.closed = true
	if s.gcTimer != nil {
		s.gcTimer.Stop()
	}
	s.gcTimerMu.Unlock()
	return s.db.Close()
}

// badgerLogger adapts badger's logger interface onto slog
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{
		logger: logger.With("component", "database"),
	}
}

func (b *badgerLogger) Errorf(msg string, args ...any) {
	b.logger.Error(fmt.Sprintf(msg, args...))
}

func (b *badgerLogger) Warningf(msg string, args ...any) {
	b.logger.Warn(fmt.Sprintf(msg, args...))
}

func (b *badgerLogger) Infof(msg string, args ...any) {
	b.logger.Info(fmt.Sprintf(msg, args...))
}

func (b *badgerLogger) Debugf(msg string, args ...any) {
	b.logger.Debug(fmt.Sprintf(msg, args...))
}

var _ badger.Logger = (*badgerLogger)(nil)

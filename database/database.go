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
	"errors"
	"io"
	"log/slog"

	"github.com/blinklabs-io/warden/event"
)

// Database bundles the audit log and the payload store behind a single
// lifecycle
type Database struct {
	audit   *AuditStore
	payload *PayloadStore
	logger  *slog.Logger
}

type Config struct {
	// DataDir is the on-disk location for both stores. Empty means fully
	// in-memory.
	DataDir  string
	Logger   *slog.Logger
	EventBus *event.EventBus
}

func New(cfg Config) (*Database, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	audit, err := NewAuditStore(cfg.DataDir, cfg.Logger)
	if err != nil {
		return nil, err
	}
	payload, err := NewPayloadStore(cfg.DataDir, cfg.Logger)
	if err != nil {
		// Don't leak the sqlite handle when badger fails to open
		_ = audit.Close()
		return nil, err
	}
	db := &Database{
		audit:   audit,
		payload: payload,
		logger:  cfg.Logger,
	}
	if cfg.EventBus != nil {
		audit.Watch(cfg.EventBus)
	}
	return db, nil
}

// Audit returns the audit log store
func (d *Database) Audit() *AuditStore {
	return d.audit
}

// Payload returns the payload store
func (d *Database) Payload() *PayloadStore {
	return d.payload
}

func (d *Database) Close() error {
	return errors.Join(
		d.audit.Close(),
		d.payload.Close(),
	)
}

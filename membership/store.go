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

package membership

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/warden/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const DefaultCommitteeSize = 7

type StoreConfig struct {
	PromRegistry  prometheus.Registerer
	Logger        *slog.Logger
	EventBus      *event.EventBus
	CommitteeSize int
}

// Store holds the two guardian batches (active and standby) and their
// membership indexes. All mutations preserve the exclusion invariant: no
// identity belongs to both batches at once.
type Store struct {
	config       StoreConfig
	metrics      *storeMetrics
	active       Batch
	standby      Batch
	activeIndex  map[Identity]int
	standbyIndex map[Identity]int
	mu           sync.Mutex
}

type storeMetrics struct {
	activeGuardians    prometheus.Gauge
	standbyGuardians   prometheus.Gauge
	standbyActivations prometheus.Counter
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.CommitteeSize == 0 {
		cfg.CommitteeSize = DefaultCommitteeSize
	}
	cfg.Logger = cfg.Logger.With("component", "membership")
	s := &Store{
		config:       cfg,
		activeIndex:  make(map[Identity]int),
		standbyIndex: make(map[Identity]int),
	}
	if cfg.PromRegistry != nil {
		s.initMetrics()
	}
	return s
}

func (s *Store) initMetrics() {
	promautoFactory := promauto.With(s.config.PromRegistry)
	s.metrics = &storeMetrics{}
	s.metrics.activeGuardians = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "warden_membership_active_guardians",
		Help: "number of guardians in the active batch",
	})
	s.metrics.standbyGuardians = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "warden_membership_standby_guardians",
		Help: "number of guardians in the standby batch",
	})
	s.metrics.standbyActivations = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_membership_standby_activations_total",
			Help: "number of times the standby batch was promoted to active",
		},
	)
}

// updateMetrics assumes s.mu is held by the caller
func (s *Store) updateMetrics() {
	if s.metrics == nil {
		return
	}
	s.metrics.activeGuardians.Set(float64(len(s.active)))
	s.metrics.standbyGuardians.Set(float64(len(s.standby)))
}

// CommitteeSize returns the fixed committee size for both batches
func (s *Store) CommitteeSize() int {
	return s.config.CommitteeSize
}

// SeedActive seeds (or reseeds) the active batch. The candidate batch must
// be exactly committee-sized, free of nulls and duplicates, and disjoint
// from the current standby batch.
func (s *Store) SeedActive(batch Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateSeedLocked(batch, s.standbyIndex); err != nil {
		return err
	}
	s.active = batch.Copy()
	s.activeIndex = buildIndex(s.active)
	s.updateMetrics()
	s.config.Logger.Info(
		"active batch seeded",
		"guardians", len(s.active),
	)
	s.publishSeeded(BatchActive, s.active)
	return nil
}

// SeedStandby seeds (or reseeds) the standby batch. The candidate batch
// must be disjoint from the current active batch.
func (s *Store) SeedStandby(batch Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateSeedLocked(batch, s.activeIndex); err != nil {
		return err
	}
	s.standby = batch.Copy()
	s.standbyIndex = buildIndex(s.standby)
	s.updateMetrics()
	s.config.Logger.Info(
		"standby batch seeded",
		"guardians", len(s.standby),
	)
	s.publishSeeded(BatchStandby, s.standby)
	return nil
}

// validateSeedLocked assumes s.mu is held by the caller
func (s *Store) validateSeedLocked(
	batch Batch,
	otherIndex map[Identity]int,
) error {
	if err := batch.validate(s.config.CommitteeSize); err != nil {
		return err
	}
	for _, guardian := range batch {
		if _, ok := otherIndex[guardian]; ok {
			return fmt.Errorf("%w: %s", ErrGuardianInOtherBatch, guardian)
		}
	}
	return nil
}

// ActivateStandby atomically replaces the active batch with the standby
// batch and clears the standby batch. This is all-or-nothing: if the
// standby batch was never seeded, nothing changes and an error is
// returned. Partial activation must never leave the active batch smaller
// than the committee size.
func (s *Store) ActivateStandby() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activateStandbyLocked()
}

// activateStandbyLocked assumes s.mu is held by the caller
func (s *Store) activateStandbyLocked() error {
	if len(s.standby) != s.config.CommitteeSize {
		return ErrStandbyNotSeeded
	}
	for _, guardian := range s.standby {
		if guardian == NullIdentity {
			return ErrStandbyNotSeeded
		}
	}
	priorActive := s.active
	s.active = s.standby
	s.activeIndex = s.standbyIndex
	s.standby = nil
	s.standbyIndex = make(map[Identity]int)
	s.updateMetrics()
	if s.metrics != nil {
		s.metrics.standbyActivations.Inc()
	}
	s.config.Logger.Warn(
		"standby batch activated",
		"displaced_guardians", len(priorActive),
	)
	if s.config.EventBus != nil {
		s.config.EventBus.Publish(
			StandbyActivatedEventType,
			event.NewEvent(
				StandbyActivatedEventType,
				StandbyActivatedEvent{
					PriorActive: priorActive,
					NewActive:   s.active.Copy(),
				},
			),
		)
	}
	return nil
}

// Replace swaps the guardian at the given slot of the given batch for a new
// identity, preserving batch size and exclusion invariants
func (s *Store) Replace(
	batchId BatchId,
	slot int,
	guardian Identity,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if guardian == NullIdentity {
		return ErrNullGuardian
	}
	var batch Batch
	var index, otherIndex map[Identity]int
	switch batchId {
	case BatchActive:
		batch, index, otherIndex = s.active, s.activeIndex, s.standbyIndex
	case BatchStandby:
		batch, index, otherIndex = s.standby, s.standbyIndex, s.activeIndex
	default:
		return ErrUnknownBatch
	}
	if slot < 0 || slot >= len(batch) {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	if _, ok := index[guardian]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateGuardian, guardian)
	}
	if _, ok := otherIndex[guardian]; ok {
		return fmt.Errorf("%w: %s", ErrGuardianInOtherBatch, guardian)
	}
	oldGuardian := batch[slot]
	batch[slot] = guardian
	delete(index, oldGuardian)
	index[guardian] = slot
	s.config.Logger.Info(
		"guardian replaced",
		"batch", batchId.String(),
		"slot", slot,
		"old", string(oldGuardian),
		"new", string(guardian),
	)
	if s.config.EventBus != nil {
		s.config.EventBus.Publish(
			GuardianReplacedEventType,
			event.NewEvent(
				GuardianReplacedEventType,
				GuardianReplacedEvent{
					Batch:       batchId.String(),
					Slot:        slot,
					OldGuardian: oldGuardian,
					NewGuardian: guardian,
				},
			),
		)
	}
	return nil
}

// IsActive returns true if the identity is a member of the active batch
func (s *Store) IsActive(guardian Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.activeIndex[guardian]
	return ok
}

// IsStandby returns true if the identity is a member of the standby batch
func (s *Store) IsStandby(guardian Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.standbyIndex[guardian]
	return ok
}

// Active returns a copy of the active batch in slot order
func (s *Store) Active() Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Copy()
}

// Standby returns a copy of the standby batch in slot order
func (s *Store) Standby() Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.standby.Copy()
}

func (s *Store) publishSeeded(batchId BatchId, batch Batch) {
	if s.config.EventBus == nil {
		return
	}
	s.config.EventBus.Publish(
		BatchSeededEventType,
		event.NewEvent(
			BatchSeededEventType,
			BatchSeededEvent{
				Batch:     batchId.String(),
				Guardians: batch.Copy(),
			},
		),
	)
}

func buildIndex(batch Batch) map[Identity]int {
	index := make(map[Identity]int, len(batch))
	for slot, guardian := range batch {
		index[guardian] = slot
	}
	return index
}

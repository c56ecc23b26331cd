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
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/warden/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore() *Store {
	return NewStore(StoreConfig{
		Logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
}

func testBatch(prefix string) Batch {
	return Batch{
		Identity(prefix + "1"),
		Identity(prefix + "2"),
		Identity(prefix + "3"),
		Identity(prefix + "4"),
		Identity(prefix + "5"),
		Identity(prefix + "6"),
		Identity(prefix + "7"),
	}
}

func TestSeedActive(t *testing.T) {
	tests := []struct {
		name    string
		batch   Batch
		wantErr error
	}{
		{
			name:  "valid batch",
			batch: testBatch("G"),
		},
		{
			name:    "wrong size",
			batch:   Batch{"G1", "G2", "G3"},
			wantErr: BatchSizeError{Expected: 7, Actual: 3},
		},
		{
			name:    "null identity",
			batch:   Batch{"G1", "G2", "G3", "", "G5", "G6", "G7"},
			wantErr: ErrNullGuardian,
		},
		{
			name:    "duplicate identity",
			batch:   Batch{"G1", "G2", "G3", "G3", "G5", "G6", "G7"},
			wantErr: ErrDuplicateGuardian,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore()
			err := s.SeedActive(tt.batch)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.batch, s.Active())
				for _, g := range tt.batch {
					assert.True(t, s.IsActive(g))
				}
			} else {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, s.Active())
			}
		})
	}
}

func TestSeedExclusivity(t *testing.T) {
	s := testStore()
	require.NoError(t, s.SeedActive(testBatch("G")))
	// Standby batch sharing a member with active must be rejected
	overlapping := testBatch("S")
	overlapping[3] = "G4"
	err := s.SeedStandby(overlapping)
	require.ErrorIs(t, err, ErrGuardianInOtherBatch)
	// Disjoint standby batch is accepted
	require.NoError(t, s.SeedStandby(testBatch("S")))
	// No identity appears in both batches
	for _, g := range s.Active() {
		assert.False(t, s.IsStandby(g))
	}
	for _, g := range s.Standby() {
		assert.False(t, s.IsActive(g))
	}
	// Reseeding active with a standby member must also be rejected
	overlapping = testBatch("H")
	overlapping[0] = "S1"
	err = s.SeedActive(overlapping)
	require.ErrorIs(t, err, ErrGuardianInOtherBatch)
}

func TestActivateStandby(t *testing.T) {
	s := testStore()
	require.NoError(t, s.SeedActive(testBatch("G")))
	require.NoError(t, s.SeedStandby(testBatch("S")))
	require.NoError(t, s.ActivateStandby())
	assert.Equal(t, testBatch("S"), s.Active())
	assert.Empty(t, s.Standby())
	for _, g := range testBatch("S") {
		assert.True(t, s.IsActive(g))
		assert.False(t, s.IsStandby(g))
	}
	for _, g := range testBatch("G") {
		assert.False(t, s.IsActive(g))
	}
}

func TestActivateStandbyNotSeeded(t *testing.T) {
	s := testStore()
	require.NoError(t, s.SeedActive(testBatch("G")))
	err := s.ActivateStandby()
	require.ErrorIs(t, err, ErrStandbyNotSeeded)
	// Active batch must be untouched by the failed activation
	assert.Equal(t, testBatch("G"), s.Active())
}

func TestActivateStandbyEvent(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	s := NewStore(StoreConfig{
		Logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		EventBus: eb,
	})
	_, evtCh := eb.Subscribe(StandbyActivatedEventType)
	require.NoError(t, s.SeedActive(testBatch("G")))
	require.NoError(t, s.SeedStandby(testBatch("S")))
	require.NoError(t, s.ActivateStandby())
	evt := <-evtCh
	data, ok := evt.Data.(StandbyActivatedEvent)
	require.True(t, ok)
	assert.Equal(t, testBatch("G"), data.PriorActive)
	assert.Equal(t, testBatch("S"), data.NewActive)
}

func TestReplace(t *testing.T) {
	tests := []struct {
		name     string
		batchId  BatchId
		slot     int
		guardian Identity
		wantErr  error
	}{
		{
			name:     "valid replacement",
			batchId:  BatchActive,
			slot:     2,
			guardian: "G8",
		},
		{
			name:     "null identity",
			batchId:  BatchActive,
			slot:     2,
			guardian: NullIdentity,
			wantErr:  ErrNullGuardian,
		},
		{
			name:     "slot out of range",
			batchId:  BatchActive,
			slot:     7,
			guardian: "G8",
			wantErr:  ErrSlotOutOfRange,
		},
		{
			name:     "already in batch",
			batchId:  BatchActive,
			slot:     2,
			guardian: "G1",
			wantErr:  ErrDuplicateGuardian,
		},
		{
			name:     "present in other batch",
			batchId:  BatchActive,
			slot:     2,
			guardian: "S1",
			wantErr:  ErrGuardianInOtherBatch,
		},
		{
			name:     "standby replacement",
			batchId:  BatchStandby,
			slot:     0,
			guardian: "S8",
		},
		{
			name:     "unknown batch",
			batchId:  BatchId(99),
			slot:     0,
			guardian: "G8",
			wantErr:  ErrUnknownBatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore()
			require.NoError(t, s.SeedActive(testBatch("G")))
			require.NoError(t, s.SeedStandby(testBatch("S")))
			err := s.Replace(tt.batchId, tt.slot, tt.guardian)
			if tt.wantErr == nil {
				require.NoError(t, err)
				var batch Batch
				if tt.batchId == BatchActive {
					batch = s.Active()
				} else {
					batch = s.Standby()
				}
				assert.Equal(t, tt.guardian, batch[tt.slot])
				assert.Len(t, batch, 7)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestBatchOrderPreserved(t *testing.T) {
	s := testStore()
	batch := testBatch("G")
	require.NoError(t, s.SeedActive(batch))
	// Slot order must survive seeding, for deterministic iteration
	require.Equal(t, batch, s.Active())
	require.NoError(t, s.SeedStandby(testBatch("S")))
	require.NoError(t, s.ActivateStandby())
	require.Equal(t, testBatch("S"), s.Active())
}

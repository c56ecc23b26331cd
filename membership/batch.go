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
)

// Identity is an opaque guardian identity. The zero value is the null
// identity and is never a valid batch member.
type Identity string

const NullIdentity Identity = ""

// BatchId selects one of the two guardian batches
type BatchId int

const (
	BatchActive BatchId = iota
	BatchStandby
)

func (b BatchId) String() string {
	switch b {
	case BatchActive:
		return "active"
	case BatchStandby:
		return "standby"
	default:
		return fmt.Sprintf("batch(%d)", int(b))
	}
}

// Batch is an ordered, fixed-length collection of unique non-null guardian
// identities. Order is significant: last-honest-guardian selection iterates
// the batch in slot order.
type Batch []Identity

// validate checks the intra-batch invariants for a candidate batch of the
// given committee size
func (b Batch) validate(committeeSize int) error {
	if len(b) != committeeSize {
		return BatchSizeError{Expected: committeeSize, Actual: len(b)}
	}
	seen := make(map[Identity]struct{}, len(b))
	for idx, guardian := range b {
		if guardian == NullIdentity {
			return fmt.Errorf("%w: slot %d", ErrNullGuardian, idx)
		}
		if _, ok := seen[guardian]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateGuardian, guardian)
		}
		seen[guardian] = struct{}{}
	}
	return nil
}

// Contains returns true if the batch contains the given identity
func (b Batch) Contains(guardian Identity) bool {
	for _, member := range b {
		if member == guardian {
			return true
		}
	}
	return false
}

// Copy returns an independent copy of the batch
func (b Batch) Copy() Batch {
	ret := make(Batch, len(b))
	copy(ret, b)
	return ret
}

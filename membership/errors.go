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
	"errors"
	"fmt"
)

var (
	ErrNullGuardian         = errors.New("null guardian identity")
	ErrDuplicateGuardian    = errors.New("duplicate guardian identity")
	ErrGuardianInOtherBatch = errors.New(
		"guardian already present in other batch",
	)
	ErrStandbyNotSeeded = errors.New("standby batch not seeded")
	ErrUnknownBatch     = errors.New("unknown batch id")
	ErrSlotOutOfRange   = errors.New("batch slot out of range")
)

// BatchSizeError indicates a seed attempt with the wrong number of guardians
type BatchSizeError struct {
	Expected int
	Actual   int
}

func (e BatchSizeError) Error() string {
	return fmt.Sprintf(
		"batch size mismatch: expected %d guardians, got %d",
		e.Expected,
		e.Actual,
	)
}

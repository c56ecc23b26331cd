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

package recovery

import (
	"errors"
	"fmt"
)

// Authorization errors
var (
	ErrNotActiveGuardian = errors.New("caller is not an active guardian")
	ErrNotLastHonest     = errors.New(
		"caller is not the assigned last-honest guardian",
	)
)

// State errors
var (
	ErrUnknownKind     = errors.New("unknown recovery kind")
	ErrNoRequest       = errors.New("no live recovery request")
	ErrAlreadyExecuted = errors.New("recovery request already executed")
	ErrRequestExpired  = errors.New("recovery request past deadline")
	ErrAlreadyApproved = errors.New(
		"guardian already approved this proposal",
	)
	ErrCouncilLocked     = errors.New("council is locked")
	ErrNoVetoAssignment  = errors.New("no veto assignment")
	ErrVetoWindowExpired = errors.New("veto window expired")
	ErrVetoStale         = errors.New(
		"request state changed since veto assignment",
	)
	ErrNilAction = errors.New("nil recovery action")
)

// ThresholdError indicates execute was called before quorum was reached
type ThresholdError struct {
	Approvals int
	Threshold int
}

func (e ThresholdError) Error() string {
	return fmt.Sprintf(
		"approval threshold not met: %d of %d required approvals",
		e.Approvals,
		e.Threshold,
	)
}

// ExecuteError wraps a failure from the external recovery action. The
// request remains live and retryable when this is returned.
type ExecuteError struct {
	Kind Kind
	Err  error
}

func (e ExecuteError) Error() string {
	return fmt.Sprintf(
		"recovery action failed for kind %s: %s",
		e.Kind,
		e.Err,
	)
}

func (e ExecuteError) Unwrap() error {
	return e.Err
}

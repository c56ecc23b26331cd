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
	"context"
	"errors"
	"fmt"

	"github.com/blinklabs-io/warden/membership"
)

// Target is the protected system whose role holders the council can
// replace. Implementations perform the replacement atomically: the new
// holder must be granted and the old holder revoked in one step.
type Target interface {
	ReplaceRoleHolder(
		ctx context.Context,
		role string,
		oldHolder membership.Identity,
		newHolder membership.Identity,
	) error
}

// RoleHolderQuerier is an optional read interface on the target used for
// audit logging only, never for authorization decisions
type RoleHolderQuerier interface {
	CurrentRoleHolder(
		ctx context.Context,
		role string,
	) (membership.Identity, error)
}

// RecoveryHook is an optional notification interface on the target. When
// implemented, the council calls OnRecover after a successful replacement.
type RecoveryHook interface {
	OnRecover(
		ctx context.Context,
		role string,
		oldHolder membership.Identity,
		newHolder membership.Identity,
	) error
}

// Action is the operation a recovery request performs on execution. The
// action is supplied at propose time and applied exactly once when the
// approval threshold is reached.
type Action interface {
	// Validate checks the action is well-formed. Called at propose time.
	Validate() error
	// Apply performs the action against the target system
	Apply(ctx context.Context) error
	// NewHolder returns the proposed new role holder, for events and audit
	NewHolder() membership.Identity
	// Describe returns a short human-readable description
	Describe() string
}

// ReplaceRoleHolder is the typed recovery action: replace the holder of a
// named role on the target, then notify the target if it implements
// RecoveryHook
type ReplaceRoleHolder struct {
	Target         Target
	Role           string
	OldHolder      membership.Identity
	ProposedHolder membership.Identity
}

func (a *ReplaceRoleHolder) Validate() error {
	if a.Target == nil {
		return errors.New("replace role holder: nil target")
	}
	if a.Role == "" {
		return errors.New("replace role holder: empty role")
	}
	if a.ProposedHolder == membership.NullIdentity {
		return errors.New("replace role holder: null proposed holder")
	}
	return nil
}

func (a *ReplaceRoleHolder) Apply(ctx context.Context) error {
	if err := a.Target.ReplaceRoleHolder(
		ctx,
		a.Role,
		a.OldHolder,
		a.ProposedHolder,
	); err != nil {
		return err
	}
	if hook, ok := a.Target.(RecoveryHook); ok {
		if err := hook.OnRecover(
			ctx,
			a.Role,
			a.OldHolder,
			a.ProposedHolder,
		); err != nil {
			return fmt.Errorf("recovery hook: %w", err)
		}
	}
	return nil
}

func (a *ReplaceRoleHolder) NewHolder() membership.Identity {
	return a.ProposedHolder
}

func (a *ReplaceRoleHolder) Describe() string {
	return fmt.Sprintf(
		"replace %s role holder %s with %s",
		a.Role,
		a.OldHolder,
		a.ProposedHolder,
	)
}

// Call is the raw-call escape hatch matching the original arbitrary
// target+payload design. The proposer is fully responsible for encoding a
// safe, idempotent payload; the council never interprets it.
type Call struct {
	// CallTarget is an opaque non-empty target descriptor
	CallTarget string
	// Payload is the opaque non-empty call payload
	Payload []byte
	// Invoke performs the call
	Invoke func(ctx context.Context, target string, payload []byte) error
	// Holder optionally records the intended new role holder for audit
	Holder membership.Identity
}

func (a *Call) Validate() error {
	if a.CallTarget == "" {
		return errors.New("call action: empty call target")
	}
	if len(a.Payload) == 0 {
		return errors.New("call action: empty call payload")
	}
	if a.Invoke == nil {
		return errors.New("call action: nil invoke func")
	}
	return nil
}

func (a *Call) Apply(ctx context.Context) error {
	return a.Invoke(ctx, a.CallTarget, a.Payload)
}

func (a *Call) NewHolder() membership.Identity {
	return a.Holder
}

func (a *Call) Describe() string {
	return fmt.Sprintf(
		"call %s with %d byte payload",
		a.CallTarget,
		len(a.Payload),
	)
}

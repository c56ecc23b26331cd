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

package governance

import (
	"errors"
)

var (
	ErrNotAuthority         = errors.New("caller is not the governance authority")
	ErrNotProposedAuthority = errors.New(
		"caller is not the proposed governance authority",
	)
	ErrNoPendingChange     = errors.New("no pending change for kind")
	ErrUnknownChangeKind   = errors.New("unknown change kind")
	ErrCommitTooEarly      = errors.New("commit delay has not elapsed")
	ErrCommitWindowExpired = errors.New("commit window expired")
	ErrNullValue           = errors.New("null proposed value")
)

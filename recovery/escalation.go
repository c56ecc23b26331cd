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
	"github.com/blinklabs-io/warden/membership"
)

// selectLastHonest returns the sole active guardian whose last approved
// nonce does not match the current proposal nonce. Iteration follows the
// batch slot order, so given exactly committee-size-1 distinct approvals
// the result is deterministic across replays.
func selectLastHonest(
	active membership.Batch,
	lastApproved map[membership.Identity]uint64,
	nonce uint64,
) (membership.Identity, bool) {
	for _, guardian := range active {
		if lastApproved[guardian] != nonce {
			return guardian, true
		}
	}
	return membership.NullIdentity, false
}

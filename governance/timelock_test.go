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
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/blinklabs-io/warden/membership"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAuthority = membership.Identity("dao")

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func testBatch(prefix string) membership.Batch {
	batch := make(membership.Batch, membership.DefaultCommitteeSize)
	for i := range batch {
		batch[i] = membership.Identity(fmt.Sprintf("%s%d", prefix, i+1))
	}
	return batch
}

func testAuthorityHarness(
	t *testing.T,
) (*Authority, *membership.Store, *testClock) {
	t.Helper()
	store := membership.NewStore(membership.StoreConfig{})
	require.NoError(t, store.SeedActive(testBatch("guardian")))
	require.NoError(t, store.SeedStandby(testBatch("standby")))
	clock := &testClock{
		now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	authority, err := New(Config{
		Membership: store,
		Authority:  testAuthority,
		Now:        clock.Now,
	})
	require.NoError(t, err)
	return authority, store, clock
}

func TestAuthorityOnly(t *testing.T) {
	authority, _, _ := testAuthorityHarness(t)
	assert.ErrorIs(
		t,
		authority.ProposeAuthority("stranger", "new-dao"),
		ErrNotAuthority,
	)
	assert.ErrorIs(
		t,
		authority.ProposeActiveBatch("stranger", testBatch("fresh")),
		ErrNotAuthority,
	)
	assert.ErrorIs(
		t,
		authority.ActivateStandby("stranger"),
		ErrNotAuthority,
	)
	assert.ErrorIs(
		t,
		authority.ClearLockAndWarning("stranger"),
		ErrNotAuthority,
	)
	assert.ErrorIs(
		t,
		authority.CancelPending("stranger", ChangeActiveBatch),
		ErrNotAuthority,
	)
}

func TestCommitDelayEnforced(t *testing.T) {
	authority, store, clock := testAuthorityHarness(t)
	fresh := testBatch("fresh")
	require.NoError(t, authority.ProposeActiveBatch(testAuthority, fresh))
	// Immediate commit is refused
	assert.ErrorIs(
		t,
		authority.CommitActiveBatch(testAuthority),
		ErrCommitTooEarly,
	)
	clock.Advance(DefaultCommitDelay - time.Second)
	assert.ErrorIs(
		t,
		authority.CommitActiveBatch(testAuthority),
		ErrCommitTooEarly,
	)
	clock.Advance(time.Second)
	// The timelock is the gate, not the committer's identity
	require.NoError(t, authority.CommitActiveBatch("keeper"))
	assert.Equal(t, fresh, store.Active())
	// Already consumed
	assert.ErrorIs(
		t,
		authority.CommitActiveBatch(testAuthority),
		ErrNoPendingChange,
	)
}

func TestCommitOpenToAnyCaller(t *testing.T) {
	authority, store, clock := testAuthorityHarness(t)
	// Strangers cannot queue or cancel a change, but once the authority
	// has queued one and the delay matured, any caller may apply it. A
	// lost authority key cannot strand an already-approved change.
	assert.ErrorIs(
		t,
		authority.ProposeStandbyBatch("stranger", testBatch("fresh")),
		ErrNotAuthority,
	)
	fresh := testBatch("fresh")
	require.NoError(t, authority.ProposeStandbyBatch(testAuthority, fresh))
	assert.ErrorIs(
		t,
		authority.CancelPending("stranger", ChangeStandbyBatch),
		ErrNotAuthority,
	)
	clock.Advance(DefaultCommitDelay)
	require.NoError(t, authority.CommitStandbyBatch("stranger"))
	assert.Equal(t, fresh, store.Standby())
}

func TestCommitWindowExpiry(t *testing.T) {
	authority, store, clock := testAuthorityHarness(t)
	prior := store.Active()
	require.NoError(
		t,
		authority.ProposeActiveBatch(testAuthority, testBatch("fresh")),
	)
	clock.Advance(DefaultCommitDelay + DefaultCommitWindow + time.Second)
	assert.ErrorIs(
		t,
		authority.CommitActiveBatch("keeper"),
		ErrCommitWindowExpired,
	)
	// The expired change is gone, not retryable
	assert.ErrorIs(
		t,
		authority.CommitActiveBatch(testAuthority),
		ErrNoPendingChange,
	)
	assert.Equal(t, prior, store.Active())
}

func TestAuthorityTransferTwoStep(t *testing.T) {
	authority, _, clock := testAuthorityHarness(t)
	newAuthority := membership.Identity("new-dao")
	require.NoError(
		t,
		authority.ProposeAuthority(testAuthority, newAuthority),
	)
	clock.Advance(DefaultCommitDelay)
	// Only the proposed identity may accept, not even the current
	// authority
	assert.ErrorIs(
		t,
		authority.CommitAuthority(testAuthority),
		ErrNotProposedAuthority,
	)
	assert.ErrorIs(
		t,
		authority.CommitAuthority("stranger"),
		ErrNotProposedAuthority,
	)
	require.NoError(t, authority.CommitAuthority(newAuthority))
	assert.Equal(t, newAuthority, authority.CurrentAuthority())
	// The old authority lost its powers
	assert.ErrorIs(
		t,
		authority.ProposeActiveBatch(testAuthority, testBatch("fresh")),
		ErrNotAuthority,
	)
	assert.NoError(
		t,
		authority.ProposeActiveBatch(newAuthority, testBatch("fresh")),
	)
}

func TestProposeSupersedes(t *testing.T) {
	authority, store, clock := testAuthorityHarness(t)
	require.NoError(
		t,
		authority.ProposeActiveBatch(testAuthority, testBatch("first")),
	)
	clock.Advance(DefaultCommitDelay)
	second := testBatch("second")
	// The second proposal replaces the first and restarts the delay
	require.NoError(t, authority.ProposeActiveBatch(testAuthority, second))
	assert.ErrorIs(
		t,
		authority.CommitActiveBatch(testAuthority),
		ErrCommitTooEarly,
	)
	clock.Advance(DefaultCommitDelay)
	require.NoError(t, authority.CommitActiveBatch(testAuthority))
	assert.Equal(t, second, store.Active())
}

func TestCancelPending(t *testing.T) {
	authority, _, clock := testAuthorityHarness(t)
	require.NoError(
		t,
		authority.ProposeStandbyBatch(testAuthority, testBatch("fresh")),
	)
	_, ok := authority.Pending(ChangeStandbyBatch)
	require.True(t, ok)
	require.NoError(
		t,
		authority.CancelPending(testAuthority, ChangeStandbyBatch),
	)
	_, ok = authority.Pending(ChangeStandbyBatch)
	assert.False(t, ok)
	clock.Advance(DefaultCommitDelay)
	assert.ErrorIs(
		t,
		authority.CommitStandbyBatch(testAuthority),
		ErrNoPendingChange,
	)
}

func TestCommitFailureRetryable(t *testing.T) {
	authority, store, clock := testAuthorityHarness(t)
	// A standby reseed that collides with the active batch fails at
	// commit, but stays pending for a corrected retry path
	require.NoError(
		t,
		authority.ProposeStandbyBatch(testAuthority, store.Active()),
	)
	clock.Advance(DefaultCommitDelay)
	err := authority.CommitStandbyBatch(testAuthority)
	require.Error(t, err)
	assert.ErrorIs(t, err, membership.ErrGuardianInOtherBatch)
	_, ok := authority.Pending(ChangeStandbyBatch)
	assert.True(t, ok)
}

func TestTargetRebinding(t *testing.T) {
	authority, _, clock := testAuthorityHarness(t)
	assert.Nil(t, authority.Target())
	newTarget := stubTarget{}
	require.NoError(t, authority.ProposeTarget(testAuthority, newTarget))
	assert.Nil(t, authority.Target())
	clock.Advance(DefaultCommitDelay)
	require.NoError(t, authority.CommitTarget(testAuthority))
	assert.Equal(t, newTarget, authority.Target())
}

func TestManualFailover(t *testing.T) {
	authority, store, _ := testAuthorityHarness(t)
	standby := store.Standby()
	require.NoError(t, authority.ActivateStandby(testAuthority))
	assert.Equal(t, standby, store.Active())
}

func TestPendingChangesSnapshot(t *testing.T) {
	authority, _, _ := testAuthorityHarness(t)
	require.NoError(
		t,
		authority.ProposeActiveBatch(testAuthority, testBatch("fresh")),
	)
	require.NoError(
		t,
		authority.ProposeAuthority(testAuthority, "new-dao"),
	)
	changes := authority.PendingChanges()
	assert.Len(t, changes, 2)
}

type stubTarget struct{}

func (stubTarget) ReplaceRoleHolder(
	_ context.Context,
	_ string,
	_ membership.Identity,
	_ membership.Identity,
) error {
	return nil
}

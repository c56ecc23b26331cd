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

package warden

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/blinklabs-io/warden/database"
	"github.com/blinklabs-io/warden/membership"
	"github.com/blinklabs-io/warden/recovery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type councilTestTarget struct {
	holders map[string]membership.Identity
}

func (t *councilTestTarget) ReplaceRoleHolder(
	_ context.Context,
	role string,
	_ membership.Identity,
	newHolder membership.Identity,
) error {
	t.holders[role] = newHolder
	return nil
}

func testBatch(prefix string) membership.Batch {
	batch := make(membership.Batch, membership.DefaultCommitteeSize)
	for i := range batch {
		batch[i] = membership.Identity(fmt.Sprintf("%s%d", prefix, i+1))
	}
	return batch
}

func startTestCouncil(t *testing.T) (*Council, *councilTestTarget) {
	t.Helper()
	target := &councilTestTarget{
		holders: make(map[string]membership.Identity),
	}
	council, err := New(NewConfig(
		WithGovernanceAuthority("dao"),
		WithActiveBatch(testBatch("guardian")),
		WithStandbyBatch(testBatch("standby")),
		WithRecoveryTarget(target),
	))
	require.NoError(t, err)
	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- council.Run()
	}()
	// Wait for assembly to finish
	require.Eventually(t, func() bool {
		return council.Recovery() != nil && council.Governance() != nil
	}, 5*time.Second, 10*time.Millisecond)
	t.Cleanup(func() {
		require.NoError(t, council.Stop())
		require.NoError(t, <-runErrCh)
	})
	return council, target
}

func TestCouncilRequiresAuthority(t *testing.T) {
	_, err := New(NewConfig())
	assert.ErrorContains(t, err, "no governance authority")
}

func TestCouncilHonestRecovery(t *testing.T) {
	council, target := startTestCouncil(t)
	active := council.ActiveBatch()
	action := &recovery.ReplaceRoleHolder{
		Target:         council.Governance().Target(),
		Role:           "deployer",
		OldHolder:      "lost-key",
		ProposedHolder: "recovered-key",
	}
	nonce, err := council.Propose(recovery.KindDeployer, active[0], action)
	require.NoError(t, err)
	for _, guardian := range active[1:recovery.DefaultThreshold] {
		require.NoError(t, council.Approve(recovery.KindDeployer, guardian))
	}
	require.NoError(
		t,
		council.Execute(context.Background(), recovery.KindDeployer),
	)
	assert.Equal(
		t,
		membership.Identity("recovered-key"),
		target.holders["deployer"],
	)
	// The whole sequence lands in the audit log
	require.Eventually(t, func() bool {
		records, err := council.AuditRecords(database.AuditFilter{
			EventType: string(recovery.RequestExecutedEventType),
		})
		return err == nil && len(records) == 1
	}, 5*time.Second, 10*time.Millisecond)
	records, err := council.AuditRecords(database.AuditFilter{
		Kind: string(recovery.KindDeployer),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, records)
	assert.Equal(t, nonce, records[0].Nonce)
}

func TestCouncilPersistsCallPayloads(t *testing.T) {
	council, _ := startTestCouncil(t)
	active := council.ActiveBatch()
	payload := []byte{0x01, 0x02, 0x03}
	action := &recovery.Call{
		CallTarget: "vault.rotate",
		Payload:    payload,
		Invoke: func(context.Context, string, []byte) error {
			return nil
		},
	}
	nonce, err := council.Propose(recovery.KindAdmin, active[0], action)
	require.NoError(t, err)
	stored, err := council.Database().Payload().GetPayload(
		string(recovery.KindAdmin),
		nonce,
	)
	require.NoError(t, err)
	assert.Equal(t, payload, stored)
}

func TestCouncilViewSnapshot(t *testing.T) {
	council, _ := startTestCouncil(t)
	assert.False(t, council.Locked())
	assert.Equal(
		t,
		[]recovery.Kind{recovery.KindDeployer, recovery.KindAdmin},
		council.Kinds(),
	)
	assert.Equal(t, membership.Identity("dao"), council.CurrentAuthority())
	assert.Empty(t, council.PendingChanges())
	assert.Equal(t, testBatch("guardian"), council.ActiveBatch())
	assert.Equal(t, testBatch("standby"), council.StandbyBatch())
	_, ok := council.Veto(recovery.KindDeployer)
	assert.False(t, ok)
	assert.Empty(t, council.Vetoes())
}

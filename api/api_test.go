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
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blinklabs-io/warden/database"
	"github.com/blinklabs-io/warden/database/models"
	"github.com/blinklabs-io/warden/governance"
	"github.com/blinklabs-io/warden/membership"
	"github.com/blinklabs-io/warden/recovery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCouncil struct {
	locked   bool
	requests map[recovery.Kind]recovery.RequestInfo
	vetoes   []recovery.VetoInfo
	records  []models.AuditRecord
	filter   database.AuditFilter
}

func (s *stubCouncil) Locked() bool {
	return s.locked
}

func (s *stubCouncil) Kinds() []recovery.Kind {
	return []recovery.Kind{recovery.KindDeployer, recovery.KindAdmin}
}

func (s *stubCouncil) Request(
	kind recovery.Kind,
) (recovery.RequestInfo, bool) {
	info, ok := s.requests[kind]
	return info, ok
}

func (s *stubCouncil) Vetoes() []recovery.VetoInfo {
	return s.vetoes
}

func (s *stubCouncil) ActiveBatch() membership.Batch {
	return membership.Batch{"guardian1", "guardian2"}
}

func (s *stubCouncil) StandbyBatch() membership.Batch {
	return membership.Batch{"standby1", "standby2"}
}

func (s *stubCouncil) CurrentAuthority() membership.Identity {
	return "dao"
}

func (s *stubCouncil) PendingChanges() []governance.PendingInfo {
	return []governance.PendingInfo{
		{
			Kind:        governance.ChangeActiveBatch,
			Description: "reseed active batch with 7 guardians",
		},
	}
}

func (s *stubCouncil) AuditRecords(
	filter database.AuditFilter,
) ([]models.AuditRecord, error) {
	s.filter = filter
	return s.records, nil
}

func testApi(council *stubCouncil) *Api {
	return New(Config{}, council, nil)
}

func doRequest(
	t *testing.T,
	a *Api,
	path string,
	out any,
) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestHandleStatus(t *testing.T) {
	council := &stubCouncil{
		locked: true,
		vetoes: []recovery.VetoInfo{
			{
				Kind:       recovery.KindDeployer,
				Nonce:      4,
				Guardian:   "guardian7",
				VetoExpiry: time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
			},
			{
				Kind:       recovery.KindAdmin,
				Nonce:      2,
				Guardian:   "guardian3",
				VetoExpiry: time.Date(2026, 3, 16, 11, 0, 0, 0, time.UTC),
			},
		},
	}
	var resp StatusResponse
	code := doRequest(t, testApi(council), "/api/v1/status", &resp)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Locked)
	assert.Equal(t, "dao", resp.Authority)
	assert.Equal(t, []string{"deployer", "admin"}, resp.Kinds)
	require.Len(t, resp.Vetoes, 2)
	assert.Equal(t, "guardian7", resp.Vetoes[0].Guardian)
	assert.Equal(t, "admin", resp.Vetoes[1].Kind)
}

func TestHandleStatusNoVeto(t *testing.T) {
	var resp StatusResponse
	code := doRequest(t, testApi(&stubCouncil{}), "/api/v1/status", &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Vetoes)
}

func TestHandleBatches(t *testing.T) {
	var resp BatchesResponse
	code := doRequest(t, testApi(&stubCouncil{}), "/api/v1/batches", &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"guardian1", "guardian2"}, resp.Active)
	assert.Equal(t, []string{"standby1", "standby2"}, resp.Standby)
}

func TestHandleRequests(t *testing.T) {
	council := &stubCouncil{
		requests: map[recovery.Kind]recovery.RequestInfo{
			recovery.KindDeployer: {
				Kind:      recovery.KindDeployer,
				Nonce:     2,
				Proposer:  "guardian1",
				Approvals: 3,
			},
		},
	}
	var resp []RequestResponse
	code := doRequest(t, testApi(council), "/api/v1/requests", &resp)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp, 1)
	assert.Equal(t, "deployer", resp[0].Kind)
	assert.Equal(t, 3, resp[0].Approvals)

	var single RequestResponse
	code = doRequest(
		t,
		testApi(council),
		"/api/v1/requests/deployer",
		&single,
	)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, uint64(2), single.Nonce)

	code = doRequest(t, testApi(council), "/api/v1/requests/admin", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code = doRequest(t, testApi(council), "/api/v1/requests/bogus", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandleGovernancePending(t *testing.T) {
	var resp []PendingChangeResponse
	code := doRequest(
		t,
		testApi(&stubCouncil{}),
		"/api/v1/governance/pending",
		&resp,
	)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp, 1)
	assert.Equal(t, "active-batch", resp[0].Kind)
}

func TestHandleAudit(t *testing.T) {
	council := &stubCouncil{
		records: []models.AuditRecord{
			{
				EventType: "recovery.request-approved",
				Kind:      "deployer",
				Nonce:     2,
				Guardian:  "guardian2",
			},
		},
	}
	var resp []AuditRecordResponse
	code := doRequest(
		t,
		testApi(council),
		"/api/v1/audit?kind=deployer&limit=5",
		&resp,
	)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp, 1)
	assert.Equal(t, "guardian2", resp[0].Guardian)
	assert.Equal(t, "deployer", council.filter.Kind)
	assert.Equal(t, 5, council.filter.Limit)

	code = doRequest(
		t,
		testApi(council),
		"/api/v1/audit?limit=bogus",
		nil,
	)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandleHealth(t *testing.T) {
	var resp HealthResponse
	code := doRequest(t, testApi(&stubCouncil{}), "/health", &resp)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.IsHealthy)
}

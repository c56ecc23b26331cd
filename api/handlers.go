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
	"slices"
	"strconv"

	"github.com/blinklabs-io/warden/database"
	"github.com/blinklabs-io/warden/recovery"
)

const apiVersion = "0.1.0"

const defaultAuditLimit = 100

// writeJSON writes a JSON response with the given status code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// handleRoot handles GET / and returns API metadata.
func (a *Api) handleRoot(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:    "warden",
		Version: apiVersion,
	})
}

// handleHealth handles GET /health. A locked council is still healthy:
// the lock is a protective state, not a fault.
func (a *Api) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
	})
}

// handleStatus handles GET /api/v1/status.
func (a *Api) handleStatus(
	w http.ResponseWriter,
	_ *http.Request,
) {
	kinds := a.council.Kinds()
	kindStrs := make([]string, len(kinds))
	for i, kind := range kinds {
		kindStrs[i] = string(kind)
	}
	resp := StatusResponse{
		Locked:    a.council.Locked(),
		Authority: string(a.council.CurrentAuthority()),
		Kinds:     kindStrs,
	}
	for _, veto := range a.council.Vetoes() {
		resp.Vetoes = append(resp.Vetoes, VetoResponse{
			Kind:       string(veto.Kind),
			Nonce:      veto.Nonce,
			Guardian:   string(veto.Guardian),
			VetoExpiry: veto.VetoExpiry,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBatches handles GET /api/v1/batches.
func (a *Api) handleBatches(
	w http.ResponseWriter,
	_ *http.Request,
) {
	active := a.council.ActiveBatch()
	standby := a.council.StandbyBatch()
	resp := BatchesResponse{
		Active:  make([]string, len(active)),
		Standby: make([]string, len(standby)),
	}
	for i, guardian := range active {
		resp.Active[i] = string(guardian)
	}
	for i, guardian := range standby {
		resp.Standby[i] = string(guardian)
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestResponse(info recovery.RequestInfo) RequestResponse {
	return RequestResponse{
		Kind:          string(info.Kind),
		Nonce:         info.Nonce,
		Proposer:      string(info.Proposer),
		ProposedValue: string(info.ProposedValue),
		Action:        info.Action,
		Approvals:     info.Approvals,
		Deadline:      info.Deadline,
		Executed:      info.Executed,
		WarningRaised: info.WarningRaised,
		Expired:       info.Expired,
	}
}

// handleRequests handles GET /api/v1/requests and returns the live
// request of every kind.
func (a *Api) handleRequests(
	w http.ResponseWriter,
	_ *http.Request,
) {
	resp := []RequestResponse{}
	for _, kind := range a.council.Kinds() {
		if info, ok := a.council.Request(kind); ok {
			resp = append(resp, requestResponse(info))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRequestByKind handles GET /api/v1/requests/{kind}.
func (a *Api) handleRequestByKind(
	w http.ResponseWriter,
	r *http.Request,
) {
	kind := recovery.Kind(r.PathValue("kind"))
	if !slices.Contains(a.council.Kinds(), kind) {
		writeError(
			w,
			http.StatusNotFound,
			"Not Found",
			"unknown recovery kind",
		)
		return
	}
	info, ok := a.council.Request(kind)
	if !ok {
		writeError(
			w,
			http.StatusNotFound,
			"Not Found",
			"no live recovery request",
		)
		return
	}
	writeJSON(w, http.StatusOK, requestResponse(info))
}

// handleGovernancePending handles GET /api/v1/governance/pending.
func (a *Api) handleGovernancePending(
	w http.ResponseWriter,
	_ *http.Request,
) {
	pending := a.council.PendingChanges()
	resp := make([]PendingChangeResponse, len(pending))
	for i, change := range pending {
		resp[i] = PendingChangeResponse{
			Kind:           string(change.Kind),
			Description:    change.Description,
			EarliestCommit: change.EarliestCommit,
			CommitDeadline: change.CommitDeadline,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAudit handles GET /api/v1/audit with optional event_type, kind,
// and limit query parameters.
func (a *Api) handleAudit(
	w http.ResponseWriter,
	r *http.Request,
) {
	filter := database.AuditFilter{
		EventType: r.URL.Query().Get("event_type"),
		Kind:      r.URL.Query().Get("kind"),
		Limit:     defaultAuditLimit,
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			writeError(
				w,
				http.StatusBadRequest,
				"Bad Request",
				"invalid limit",
			)
			return
		}
		filter.Limit = limit
	}
	records, err := a.council.AuditRecords(filter)
	if err != nil {
		a.logger.Error(
			"failed to query audit records",
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"audit query failed",
		)
		return
	}
	resp := make([]AuditRecordResponse, len(records))
	for i, record := range records {
		resp[i] = AuditRecordResponse{
			Timestamp: record.Timestamp,
			EventType: record.EventType,
			Kind:      record.Kind,
			Nonce:     record.Nonce,
			Guardian:  record.Guardian,
			Detail:    record.Detail,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

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
	"time"
)

type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

type StatusResponse struct {
	Locked    bool           `json:"locked"`
	Authority string         `json:"authority"`
	Kinds     []string       `json:"kinds"`
	Vetoes    []VetoResponse `json:"vetoes,omitempty"`
}

type VetoResponse struct {
	Kind       string    `json:"kind"`
	Nonce      uint64    `json:"nonce"`
	Guardian   string    `json:"guardian"`
	VetoExpiry time.Time `json:"veto_expiry"`
}

type BatchesResponse struct {
	Active  []string `json:"active"`
	Standby []string `json:"standby"`
}

type RequestResponse struct {
	Kind          string    `json:"kind"`
	Nonce         uint64    `json:"nonce"`
	Proposer      string    `json:"proposer"`
	ProposedValue string    `json:"proposed_value"`
	Action        string    `json:"action"`
	Approvals     int       `json:"approvals"`
	Deadline      time.Time `json:"deadline"`
	Executed      bool      `json:"executed"`
	WarningRaised bool      `json:"warning_raised"`
	Expired       bool      `json:"expired"`
}

type PendingChangeResponse struct {
	Kind           string    `json:"kind"`
	Description    string    `json:"description"`
	EarliestCommit time.Time `json:"earliest_commit"`
	CommitDeadline time.Time `json:"commit_deadline"`
}

type AuditRecordResponse struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Kind      string    `json:"kind,omitempty"`
	Nonce     uint64    `json:"nonce,omitempty"`
	Guardian  string    `json:"guardian,omitempty"`
	Detail    string    `json:"detail"`
}

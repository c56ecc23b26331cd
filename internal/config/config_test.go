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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile(t *testing.T) {
	configYaml := `
authority: dao
databasePath: /var/lib/warden
activeGuardians:
  - guardian1
  - guardian2
threshold: 5
recoveryWindow: 72h
apiListenAddress: localhost:8080
`
	configPath := filepath.Join(t.TempDir(), "warden.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYaml), 0o600))
	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "dao", cfg.Authority)
	assert.Equal(t, "/var/lib/warden", cfg.DatabasePath)
	assert.Equal(t, []string{"guardian1", "guardian2"}, cfg.ActiveGuardians)
	assert.Equal(t, 5, cfg.Threshold)
	assert.Equal(t, "72h", cfg.RecoveryWindow)
	assert.Equal(t, "localhost:8080", cfg.ApiListenAddress)
	// Defaults survive the overlay
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	configYaml := `
authority: dao
databasePath: /var/lib/warden
`
	configPath := filepath.Join(t.TempDir(), "warden.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYaml), 0o600))
	t.Setenv("WARDEN_DATABASE_PATH", "/tmp/override")
	t.Setenv("WARDEN_TRACING", "true")
	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override", cfg.DatabasePath)
	assert.True(t, cfg.Tracing)
}

func TestLoadConfigValidation(t *testing.T) {
	configYaml := `
authority: dao
recoveryWindow: bogus
`
	configPath := filepath.Join(t.TempDir(), "warden.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYaml), 0o600))
	_, err := LoadConfig(configPath)
	assert.ErrorContains(t, err, "invalid recoveryWindow")
}

func TestDuration(t *testing.T) {
	assert.Equal(t, time.Duration(0), Duration(""))
	assert.Equal(t, 48*time.Hour, Duration("48h"))
}

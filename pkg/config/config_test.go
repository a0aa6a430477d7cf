// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	yamlDoc := []byte(`
parallel_workers: 8
mode: deep
`)
	cfg, err := Load(yamlDoc)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.ParallelWorkers)
	assert.Equal(t, ModeDeep, cfg.Mode)
	// Untouched fields keep Default's values.
	assert.Equal(t, Default().PagerankDamping, cfg.PagerankDamping)
}

func TestLoad_RejectsInvalidMode(t *testing.T) {
	_, err := Load([]byte("mode: turbo\n"))
	require.Error(t, err)
}

func TestValidate_RejectsNonPositiveWorkers(t *testing.T) {
	cfg := Default()
	cfg.ParallelWorkers = 0
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangeDamping(t *testing.T) {
	cfg := Default()
	cfg.PagerankDamping = 1.0
	require.Error(t, cfg.Validate())

	cfg.PagerankDamping = 0
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveMaxFileBytes(t *testing.T) {
	cfg := Default()
	cfg.MaxFileBytes = 0
	require.Error(t, cfg.Validate())
}

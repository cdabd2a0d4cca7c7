// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "events", cfg.Topic)
	assert.Equal(t, 8, cfg.NumPartitions)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 4, cfg.RecWindowCount)
	assert.Empty(t, cfg.RecommendationClients)
}

func TestLoadParsesRecommendationClients(t *testing.T) {
	t.Setenv("DSPA_RECOMMENDATION_CLIENTS", "38,42, 7")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []uint64{38, 42, 7}, cfg.RecommendationClients)
}

func TestLoadRejectsMalformedRecommendationClients(t *testing.T) {
	t.Setenv("DSPA_RECOMMENDATION_CLIENTS", "38,not-a-number")
	_, err := Load()
	assert.Error(t, err)
}

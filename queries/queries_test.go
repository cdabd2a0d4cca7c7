// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package queries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs("1,3")
	require.NoError(t, err)
	assert.Equal(t, []ID{ActivePosts, SpamDetection}, ids)

	sel := NewSelection(ids)
	assert.True(t, sel.Enabled(ActivePosts))
	assert.False(t, sel.Enabled(Recommendations))
	assert.True(t, sel.Enabled(SpamDetection))
}

func TestParseIDsRejectsUnknown(t *testing.T) {
	_, err := ParseIDs("1,4")
	assert.Error(t, err)
}

func TestParseIDsRejectsEmpty(t *testing.T) {
	_, err := ParseIDs("")
	assert.Error(t, err)
}

// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMapAndBind(t *testing.T) {
	t.Parallel()

	params := CallToolParams{Name: "search", Arguments: map[string]any{"q": "go"}}
	m, err := ToMap(params)
	require.NoError(t, err)
	assert.Equal(t, "search", m["name"])

	var back CallToolParams
	require.NoError(t, Bind(m, &back))
	assert.Equal(t, params, back)
}

func TestToMapRejectsNonObjects(t *testing.T) {
	t.Parallel()

	_, err := ToMap([]string{"a"})
	assert.Error(t, err)

	m, err := ToMap(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestCallToolResultText(t *testing.T) {
	t.Parallel()

	r := &CallToolResult{Content: []Content{
		{Type: ContentTypeText, Text: "first"},
		{Type: ContentTypeImage, Data: "aGk=", MimeType: "image/png"},
		{Type: ContentTypeText, Text: "second"},
	}}
	assert.Equal(t, "first\n[image image/png]\nsecond", r.Text())

	var nilResult *CallToolResult
	assert.Empty(t, nilResult.Text())

	failed := ErrorResult("tool %q failed", "x")
	assert.True(t, failed.IsError)
	assert.Equal(t, `tool "x" failed`, failed.Text())
}

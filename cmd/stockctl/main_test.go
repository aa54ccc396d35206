package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilters(t *testing.T) {
	filters, err := parseFilters([]string{"stockLevel=low", "category=tools", "category = paint", "search=drill bit"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"stockLevel": "low",
		"category":   []string{"tools", "paint"},
		"search":     "drill bit",
	}, filters)

	_, err = parseFilters([]string{"nokey"})
	assert.Error(t, err)
	_, err = parseFilters([]string{"=value"})
	assert.Error(t, err)
}

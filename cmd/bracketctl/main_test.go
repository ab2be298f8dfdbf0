package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologyJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"topology", "--group-size", "8", "--json"}, &out))

	var summary topologySummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 8, summary.GroupSize)
	assert.Equal(t, 29, summary.Matches)

	total := 0
	for _, s := range summary.Segments {
		total += s.Matches
	}
	assert.Equal(t, summary.Matches, total)
	assert.Equal(t, "cross_final", summary.Segments[len(summary.Segments)-1].Segment)
}

func TestTopologyGroupFinalGates(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"topology", "--group-size", "8", "--json"}, &out))

	var summary topologySummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))

	gates := map[string][]string{}
	for _, s := range summary.Segments {
		gates[s.Segment] = s.GatedBy
	}

	gf := gates["A/group_final"]
	require.Len(t, gf, 3)
	assert.Contains(t, gf, "A/winners_r3")
	assert.Contains(t, gf, "A/losers_a_r2")
	hasLosersB := false
	for _, g := range gf {
		hasLosersB = hasLosersB || strings.HasPrefix(g, "A/losers_b_")
	}
	assert.True(t, hasLosersB, "group final gates: %v", gf)

	assert.Equal(t, []string{"A/group_final", "B/group_final"}, gates["cross_semifinal"])
	assert.Empty(t, gates["A/winners_r1"])
}

func TestTopologyRejectsBadSize(t *testing.T) {
	err := run([]string{"topology", "-n", "6"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestHashKeyAndToken(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"hash-key", "--key", "op"}, &out))
	assert.True(t, strings.HasPrefix(out.String(), "$2a$"))

	out.Reset()
	require.NoError(t, run([]string{"token", "--secret", "s", "--user", "u1", "--role", "admin"}, &out))
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(out.String()), "."))
}

func TestUnknownCommand(t *testing.T) {
	assert.Error(t, run([]string{"explode"}, &bytes.Buffer{}))
}

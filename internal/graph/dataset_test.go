package graph

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

const siteYAML = `
faits:
  - id: f1
    tag: F1
us:
  - id: u1
    tag: "1001"
    fait: f1
  - id: u2
    tag: "1002"
    live: false
relations:
  - id: r1
    anterior_us: u1
    posterior_us: u2
  - id: r2
    anterior_fait: f1
    posterior_us: u2
    contemporaneous: true
    type: 4
    live: false
`

func TestParseDataset(t *testing.T) {
	d, err := ParseDataset(strings.NewReader(siteYAML))
	require.NoError(t, err)

	require.Len(t, d.Faits, 1)
	assert.True(t, d.Faits[0].Live, "missing live flag defaults to true")
	require.Len(t, d.US, 2)
	assert.Equal(t, "f1", d.US[0].ParentFaitID)
	assert.False(t, d.US[1].Live)

	require.Len(t, d.Relations, 2)
	assert.Equal(t, strata.EntityRef{Kind: strata.KindFait, ID: "f1"}, d.Relations[1].Anterior())
	assert.True(t, d.Relations[1].IsContemporaneous)
	assert.Equal(t, 4, d.Relations[1].RelationTypeID)
	assert.False(t, d.Relations[1].Live)
}

func TestParseDataset_Empty(t *testing.T) {
	d, err := ParseDataset(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, d.Relations)
}

func TestParseDataset_RejectsIncompleteRelation(t *testing.T) {
	_, err := ParseDataset(strings.NewReader("relations:\n  - id: r1\n    anterior_us: a\n"))
	require.ErrorIs(t, err, strata.ErrMissingEndpoint)

	_, err = ParseDataset(strings.NewReader("relations:\n  - anterior_us: a\n    posterior_us: b\n"))
	require.Error(t, err)
}

func TestWriteDataset_ReadableByParse(t *testing.T) {
	d, err := ParseDataset(strings.NewReader(siteYAML))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteDataset(&buf, d))
	assert.NotContains(t, buf.String(), "live: true", "live is the default and stays implicit")

	again, err := ParseDataset(&buf)
	require.NoError(t, err)
	assert.Equal(t, d, again)
}

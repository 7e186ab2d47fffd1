package visualization

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stationmesh/dispatch/internal/distribution"
	"github.com/stationmesh/dispatch/internal/stationgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDotIncludesVerticesAndArcs(t *testing.T) {
	g := stationgraph.New()
	g.AddVertex(stationgraph.Station{ID: 1, Name: "A", BufferCapacity: 3, ServiceTime: distribution.NewConstant(2)})
	g.AddVertex(stationgraph.Station{ID: 2, Name: "B", BufferCapacity: 1, ServiceTime: distribution.NewConstant(0)})
	g.AddArc(stationgraph.Transfer{Tail: 1, Head: 2, TransferTime: distribution.NewNormal(5, 1)})

	var buf bytes.Buffer
	require.NoError(t, WriteDot(&buf, g))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "digraph StationGraph {"))
	assert.Contains(t, out, "S1: A")
	assert.Contains(t, out, "max capacity: 3")
	assert.Contains(t, out, "1 -> 2")
	assert.Contains(t, out, "t1,2: normal (5.0, 1.0)")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "}"))
}

func TestWriteDotEmptyGraph(t *testing.T) {
	g := stationgraph.New()
	var buf bytes.Buffer
	require.NoError(t, WriteDot(&buf, g))
	assert.Equal(t, "digraph StationGraph {\n}\n", buf.String())
}

package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset() Dataset {
	return Dataset{
		Title:   "CZ2002 / 10101",
		Caption: []string{"School: SCSE", "AU: 3"},
		Headers: []string{"No", "Username", "Name"},
		Rows: [][]string{
			{"1", "alice", "Alice Tan"},
			{"2", "bob", "Bob Lim"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.Equal(t, "No,Username,Name\n1,alice,Alice Tan\n2,bob,Bob Lim\n", string(out))
}

func TestCSVExporterOptions(t *testing.T) {
	out, err := NewCSVExporter(WithBOM(), WithComma(';')).Render(rosterDataset())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM))
	assert.Equal(t, "No;Username;Name\n1;alice;Alice Tan\n2;bob;Bob Lim\n", string(out[len(utf8BOM):]))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := rosterDataset()
	data.Rows = append(data.Rows, []string{"3"})
	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(rosterDataset())
	sum := 0.0
	for _, w := range widths {
		sum += w
	}
	assert.InDelta(t, pageWidth, sum, 0.001)
	assert.Greater(t, widths[2], widths[0])
}

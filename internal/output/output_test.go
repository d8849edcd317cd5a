package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socioprep/internal/table"
	"socioprep/pkg/records"
)

func sample() *table.Table {
	t := table.New("m", []string{"codigo", "reporting_year", "gini"})
	t.Append(records.Record{"codigo": "USA_2005", "reporting_year": time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), "gini": 40.5})
	t.Append(records.Record{"codigo": "TCD_2011", "reporting_year": int64(2011), "gini": nil})
	return t
}

func TestPreview(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Preview(&buf, sample(), 1))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Fields("codigo reporting_year gini"), strings.Fields(lines[0]))
	assert.Equal(t, strings.Fields("USA_2005 2005-01-01 40.5"), strings.Fields(lines[1]))
	assert.Equal(t, "[2 rows x 3 columns]", lines[2])
	assert.Equal(t, strings.Index(lines[0], "gini"), strings.Index(lines[1], "40.5"), "columns are aligned")
}

func TestPreview_MissingAndLargeCounts(t *testing.T) {
	src := sample()
	for i := 0; i < 1500; i++ {
		src.Append(records.Record{"codigo": "X", "reporting_year": int64(2000), "gini": 1.0})
	}
	var buf bytes.Buffer
	require.NoError(t, Preview(&buf, src, 2))
	assert.Contains(t, buf.String(), "NaN")
	assert.Contains(t, buf.String(), "[1,502 rows x 3 columns]")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))
	assert.Equal(t, "codigo,reporting_year,gini\nUSA_2005,2005-01-01,40.5\nTCD_2011,2011,\n", buf.String())
}

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socioprep/internal/config"
)

const (
	pipCSV = `region_name,region_code,country_name,country_code,reporting_year,gini,poverty_line,headcount,poverty_gap,reporting_pop,reporting_gdp
North America,NAC,United States,USA,2005,40.5,2.15,0.01,0.002,295000000,45000
Sub-Saharan Africa,SSA,Chad,TCD,2003,39.8,2.15,0.6,0.3,9000000,900
Sub-Saharan Africa,SSA,Chad,TCD,2011,43.3,2.15,0.4,0.2,12000000,1000
`
	schoolingCSV = "Entity,Code,Year,Expected years of schooling\nUnited States,USA,2005,15.8\nChad,TCD,2003,6.0\nChad,TCD,2011,\n"
	spendCSV     = "Entity,Code,Year,Historical and more recent expenditure estimates\nUnited States,USA,2005,5.1\nChad,TCD,2003,2.0\nChad,TCD,2011,3.0\n"
	coordCSV     = "Country,Alpha-3 code,Latitude (average),Longitude (average)\nUnited States,USA,38,-97\nChad,TCD,15,19\n"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SOCIOPREP_METRICS_BACKEND", "none")
	t.Setenv("SOCIOPREP_TRACE_EXPORTER", "none")
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	p := config.Default()
	p.Inputs = map[string]config.Input{
		"df1": {Path: write("pip.csv", pipCSV)},
		"df3": {Path: write("schooling.csv", schoolingCSV)},
		"df5": {Path: write("spend.csv", spendCSV)},
		"df6": {Path: write("coord.csv", coordCSV)},
	}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return write("pipeline.json", string(b))
}

func TestDefaults_PrintsLoadableJSON(t *testing.T) {
	out, _, err := execute(t, "defaults")
	require.NoError(t, err)

	var p config.Pipeline
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "df1", p.Merge.Primary)
	assert.Len(t, p.Merge.Joins, 3)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t)
	out, _, err := execute(t, "validate", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"job":"j","inputs":{"df1":{"path":"a.csv"}},"merge":{"primary":"dfX"}}`), 0o644))

	_, logs, err := execute(t, "validate", "-c", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInvalidConfig))
	assert.Contains(t, logs, "merge.primary")
}

func TestRun_PrintsPreviewAndWritesCSV(t *testing.T) {
	path := writeConfig(t)
	csvPath := filepath.Join(t.TempDir(), "out.csv")

	out, _, err := execute(t, "run", "-c", path, "--preview", "2", "--csv", csvPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "USA_2005")
	assert.Contains(t, out, "[3 rows x 16 columns]")
	assert.NotContains(t, out, "TCD_2011")

	b, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "TCD_2011")
}

func TestRun_StatsFlag(t *testing.T) {
	path := writeConfig(t)
	out, _, err := execute(t, "run", "-c", path, "--stats", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, `"final_rows": 3`)
}

func TestRun_MissingConfigFile(t *testing.T) {
	_, _, err := execute(t, "run", "-c", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

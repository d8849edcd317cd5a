package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"socioprep/internal/config"
	"socioprep/internal/loader"
	"socioprep/internal/logging"
	"socioprep/internal/table"
)

const (
	pipCSV = `region_name,region_code,country_name,country_code,reporting_year,gini,poverty_line,headcount,poverty_gap,reporting_pop,reporting_gdp,welfare_type
North America,NAC,United States,USA,2005,40.5,2.15,0.01,0.002,295000000,45000,income
North America,NAC,United States,USA,2021,39.8,2.15,0.01,0.002,330000000,60000,income
Sub-Saharan Africa,SSA,Chad,TCD,2003,39.8,2.15,0.6,0.3,9000000,900,consumption
Sub-Saharan Africa,SSA,Chad,TCD,2011,43.3,2.15,0.4,0.2,12000000,1000,consumption
Nowhere,NWH,Atlantis,ATL,2010,,,,,,,income
`
	schoolingCSV = `Entity,Code,Year,Expected years of schooling
United States,USA,2005,15.8
Chad,TCD,2003,6.0
Chad,TCD,2011,
`
	spendCSV = `Entity,Code,Year,Historical and more recent expenditure estimates
United States,USA,2005,5.1
Chad,TCD,2003,2.0
Chad,TCD,2011,3.0
`
	coordCSV = `Country,Alpha-3 code,Latitude (average),Longitude (average)
United States,USA,38,-97
Chad,TCD,15,19
`
)

func fixture(t *testing.T) config.Pipeline {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	cfg := config.Default()
	cfg.Inputs = map[string]config.Input{
		"df1": {Path: write("pip.csv", pipCSV), Options: config.Options{}},
		"df3": {Path: write("schooling.csv", schoolingCSV), Options: config.Options{}},
		"df5": {Path: write("spend.csv", spendCSV), Options: config.Options{}},
		"df6": {Path: write("coord.csv", coordCSV), Options: config.Options{}},
	}
	return cfg
}

func TestRun_DefaultPipeline(t *testing.T) {
	cfg := fixture(t)
	require.Empty(t, config.ValidatePipeline(cfg))

	res, err := Run(context.Background(), cfg, Deps{Log: logging.Discard(), RunID: "run-1"})
	require.NoError(t, err)

	out := res.Table
	assert.Equal(t, []string{
		"region_name", "region_code", "country_name", "country_code", "reporting_year",
		"gini", "poverty_line", "headcount", "poverty_gap", "reporting_pop", "reporting_gdp", "codigo",
		"expected_years_school", "spend_public_education", "latitude", "longitude",
	}, out.Columns)

	require.Equal(t, 3, out.Len())
	assert.Equal(t, "USA_2005", out.Rows[0]["codigo"])
	assert.Equal(t, 15.8, out.Rows[0]["expected_years_school"])
	assert.Equal(t, int64(38), out.Rows[0]["latitude"])

	assert.Equal(t, "TCD_2011", out.Rows[2]["codigo"])
	assert.Equal(t, 6.0, out.Rows[2]["expected_years_school"], "filled with the Chad mean")
	assert.Equal(t, 3.0, out.Rows[2]["spend_public_education"])

	for _, r := range out.Rows {
		assert.NotEqual(t, int64(2021), r["reporting_year"])
	}

	st := res.Stats
	assert.Equal(t, "run-1", st.RunID)
	assert.Equal(t, 5, st.Loaded["df1"])
	assert.Equal(t, 5, st.Primary)
	assert.Equal(t, 5, st.Merged)
	assert.Equal(t, 0, st.FanOut)
	assert.Len(t, st.Joins, 3)
	assert.Equal(t, 4, st.InRange)
	assert.Equal(t, config.OrderImputeFirst, st.Clean.Order)
	assert.Equal(t, 1, st.Clean.Imputed)
	assert.Equal(t, 1, st.Clean.DroppedThreshold)
	assert.Equal(t, 3, st.Final)
	assert.Len(t, st.Stages, 6)
	assert.Empty(t, st.Unmatched)
}

func TestRun_UnnormalizedRenameFailsSchemaCheck(t *testing.T) {
	cfg := fixture(t)
	cfg.Normalize.Renames["df3"] = map[string]string{"Expected years of schooling": "expected_years_school"}

	_, err := Run(context.Background(), cfg, Deps{Log: logging.Discard()})
	require.Error(t, err)

	var se *table.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "df3", se.Table)
	assert.Equal(t, "expected_years_school", se.Column)
	assert.Contains(t, se.Available, "expected_years_of_schooling")
	assert.Contains(t, err.Error(), StageSchema)
}

func TestRun_MissingRangeColumn(t *testing.T) {
	cfg := fixture(t)
	cfg.Range.Column = "year"

	_, err := Run(context.Background(), cfg, Deps{Log: logging.Discard()})
	var se *table.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "range", se.Stage)
}

func TestRun_LoadFailure(t *testing.T) {
	cfg := fixture(t)
	cfg.Inputs["df5"] = config.Input{Path: filepath.Join(t.TempDir(), "gone.csv"), Options: config.Options{}}

	res, err := Run(context.Background(), cfg, Deps{Log: logging.Discard()})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, loader.ErrLoad))
}

func TestRun_FanOutIsKept(t *testing.T) {
	cfg := fixture(t)
	dup := coordCSV + "Chad,TCD,16,20\n"
	path := filepath.Join(t.TempDir(), "coord.csv")
	require.NoError(t, os.WriteFile(path, []byte(dup), 0o644))
	cfg.Inputs["df6"] = config.Input{Path: path, Options: config.Options{}}

	res, err := Run(context.Background(), cfg, Deps{Log: logging.Discard()})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Stats.Merged)
	assert.Equal(t, 2, res.Stats.FanOut)
	assert.Equal(t, 5, res.Table.Len())
}

func TestRun_NoBoundsKeepsAllYears(t *testing.T) {
	cfg := fixture(t)
	cfg.Range.Start, cfg.Range.End = nil, nil

	res, err := Run(context.Background(), cfg, Deps{Log: logging.Discard()})
	require.NoError(t, err)
	assert.Equal(t, res.Stats.Merged, res.Stats.InRange)
}

func TestRun_EmitsStageSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	cfg := fixture(t)
	cfg.Range.Column = "year"
	_, err := Run(context.Background(), cfg, Deps{Log: logging.Discard(), RunID: "run-2"})
	require.Error(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
		if s.Name() == "pipeline."+StageSchema {
			assert.Equal(t, codes.Error, s.Status().Code)
		}
	}
	assert.Equal(t, []string{
		"pipeline.load", "pipeline.normalize", "pipeline.schema", "pipeline.run",
	}, names)
}

func TestRun_UnsetSeparatorDefaultsToUnderscore(t *testing.T) {
	cfg := fixture(t)
	for name, k := range cfg.Merge.Keys {
		k.Separator = ""
		cfg.Merge.Keys[name] = k
	}

	res, err := Run(context.Background(), cfg, Deps{Log: logging.Discard()})
	require.NoError(t, err)
	assert.Equal(t, "USA_2005", res.Table.Rows[0]["codigo"])
	assert.Equal(t, 15.8, res.Table.Rows[0]["expected_years_school"])
}

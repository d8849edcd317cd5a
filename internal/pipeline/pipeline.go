// Package pipeline runs the full preparation flow described by a
// config.Pipeline: load, normalize, schema check, key + project + merge,
// year filter and null cleaning. Every failure is fatal and no partial
// result is returned.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"socioprep/internal/clean"
	"socioprep/internal/config"
	"socioprep/internal/datasource/httpds"
	"socioprep/internal/loader"
	"socioprep/internal/merge"
	"socioprep/internal/metrics"
	"socioprep/internal/normalize"
	"socioprep/internal/table"
)

// Stage names used in logs, metrics and Stats.
const (
	StageLoad      = "load"
	StageNormalize = "normalize"
	StageSchema    = "schema"
	StageMerge     = "merge"
	StageRange     = "range"
	StageClean     = "clean"
)

// Deps are the collaborators of a run. Zero values are usable.
type Deps struct {
	Log  logrus.FieldLogger
	HTTP *httpds.Client
	// RunID labels the run; a random UUID when empty.
	RunID string
}

// StageTiming is the wall time of one stage.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
}

// Stats summarizes a run.
type Stats struct {
	RunID     string              `json:"run_id"`
	Job       string              `json:"job"`
	Loaded    map[string]int      `json:"loaded"`
	Unmatched map[string][]string `json:"unmatched_renames,omitempty"`
	Primary   int                 `json:"primary_rows"`
	Merged    int                 `json:"merged_rows"`
	FanOut    int                 `json:"fan_out"`
	Joins     []merge.JoinStats   `json:"joins"`
	InRange   int                 `json:"in_range_rows"`
	Clean     clean.Stats         `json:"clean"`
	Final     int                 `json:"final_rows"`
	Stages    []StageTiming       `json:"stages"`
	Duration  time.Duration       `json:"duration_ns"`
}

// Result is the cleaned table plus run statistics.
type Result struct {
	Table *table.Table
	Stats Stats
}

// TracerName names the tracer that emits one span per run and per stage.
const TracerName = "socioprep/pipeline"

type run struct {
	ctx   context.Context
	cfg   config.Pipeline
	log   logrus.FieldLogger
	stats *Stats
}

func (r *run) attrs() trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("pipeline.job", r.cfg.Job),
		attribute.String("pipeline.run_id", r.stats.RunID),
	)
}

// step times fn, records it and tags failures with the stage name.
func (r *run) step(stage string, fn func() error) error {
	_, span := otel.Tracer(TracerName).Start(r.ctx, "pipeline."+stage, r.attrs())
	defer span.End()

	start := time.Now()
	err := fn()
	d := time.Since(start)
	metrics.RecordStep(r.cfg.Job, stage, err, d)
	r.stats.Stages = append(r.stats.Stages, StageTiming{Stage: stage, Duration: d})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage+" failed")
		return fmt.Errorf("%s: %w", stage, err)
	}
	r.log.WithFields(logrus.Fields{"stage": stage, "took": d.Round(time.Microsecond)}).Debug("stage done")
	return nil
}

// Run executes cfg. The config should already have passed
// config.ValidatePipeline.
func Run(ctx context.Context, cfg config.Pipeline, deps Deps) (*Result, error) {
	started := time.Now()
	runID := deps.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{"run_id": runID, "job": cfg.Job})

	st := &Stats{RunID: runID, Job: cfg.Job, Loaded: map[string]int{}, Unmatched: map[string][]string{}}
	r := &run{cfg: cfg, log: log, stats: st}
	ctx, span := otel.Tracer(TracerName).Start(ctx, "pipeline.run", r.attrs())
	defer span.End()
	r.ctx = ctx
	log.WithField("inputs", len(cfg.Inputs)).Info("pipeline started")

	var raw map[string]*table.Table
	if err := r.step(StageLoad, func() (err error) {
		specs := make(map[string]loader.Spec, len(cfg.Inputs))
		for name, in := range cfg.Inputs {
			specs[name] = loader.SpecFromInput(in)
		}
		l := &loader.Loader{HTTP: deps.HTTP, Log: log}
		raw, err = l.Load(ctx, specs)
		for name, t := range raw {
			st.Loaded[name] = t.Len()
			metrics.RecordRow(cfg.Job, "loaded", int64(t.Len()))
		}
		return err
	}); err != nil {
		return nil, err
	}

	var tables map[string]*table.Table
	if err := r.step(StageNormalize, func() (err error) {
		tables, err = r.normalize(raw)
		return err
	}); err != nil {
		return nil, err
	}

	if err := r.step(StageSchema, func() error {
		return CheckSchema(cfg, tables)
	}); err != nil {
		return nil, err
	}

	var merged *table.Table
	if err := r.step(StageMerge, func() (err error) {
		merged, err = r.merge(tables)
		return err
	}); err != nil {
		return nil, err
	}

	var ranged *table.Table
	if err := r.step(StageRange, func() (err error) {
		ranged, err = clean.FilterYears(merged, cfg.Range.Column, rangeOf(cfg.Range))
		if err != nil {
			return err
		}
		st.InRange = ranged.Len()
		metrics.RecordRow(cfg.Job, "filtered", int64(merged.Len()-ranged.Len()))
		log.WithFields(logrus.Fields{"rows": ranged.Len(), "removed": merged.Len() - ranged.Len()}).Info("year window applied")
		return nil
	}); err != nil {
		return nil, err
	}

	var final *table.Table
	if err := r.step(StageClean, func() (err error) {
		log.WithField("order", cfg.Clean.Order).Info("cleaning nulls")
		final, st.Clean, err = clean.Clean(ranged, cleanSpec(cfg.Clean))
		if err != nil {
			return err
		}
		metrics.RecordRow(cfg.Job, "imputed", int64(st.Clean.Imputed))
		metrics.RecordRow(cfg.Job, "dropped", int64(st.Clean.DroppedThreshold+st.Clean.DroppedRequired))
		return nil
	}); err != nil {
		return nil, err
	}

	st.Final = final.Len()
	st.Duration = time.Since(started)
	span.SetAttributes(attribute.Int("pipeline.rows", st.Final))
	log.WithFields(logrus.Fields{
		"rows":     st.Final,
		"columns":  len(final.Columns),
		"imputed":  st.Clean.Imputed,
		"dropped":  st.Clean.DroppedThreshold + st.Clean.DroppedRequired,
		"duration": st.Duration.Round(time.Millisecond),
	}).Info("pipeline finished")
	return &Result{Table: final, Stats: *st}, nil
}

func (r *run) normalize(raw map[string]*table.Table) (map[string]*table.Table, error) {
	opt := normalize.Options{FoldAccents: r.cfg.Normalize.FoldAccents}
	out := make(map[string]*table.Table, len(raw))
	for name, t := range raw {
		nt, rep, err := normalize.Columns(t, r.cfg.Normalize.Renames[name], opt)
		if err != nil {
			return nil, err
		}
		if len(rep.Unmatched) > 0 {
			r.stats.Unmatched[name] = rep.Unmatched
			r.log.WithFields(logrus.Fields{"table": name, "keys": rep.Unmatched}).
				Warn("rename keys matched no column and were ignored")
		}
		out[name] = nt
	}
	return out, nil
}

// prepared adds the synthetic key and applies the projection of one table.
func prepared(cfg config.Pipeline, name string, t *table.Table) (*table.Table, error) {
	var err error
	if k, ok := cfg.Merge.Keys[name]; ok {
		t, err = merge.AddKey(t, keySpec(k))
		if err != nil {
			return nil, err
		}
	}
	return merge.Project(t, cfg.Merge.Project[name])
}

func (r *run) merge(tables map[string]*table.Table) (*table.Table, error) {
	cfg := r.cfg
	primary, err := prepared(cfg, cfg.Merge.Primary, tables[cfg.Merge.Primary])
	if err != nil {
		return nil, err
	}
	joins := make([]merge.Join, 0, len(cfg.Merge.Joins))
	for _, j := range cfg.Merge.Joins {
		right, err := prepared(cfg, j.Table, tables[j.Table])
		if err != nil {
			return nil, err
		}
		joins = append(joins, merge.Join{Right: right, On: j.On})
	}

	out, stats, err := merge.Merge(primary, joins)
	if err != nil {
		return nil, err
	}
	for _, s := range stats {
		fields := logrus.Fields{"table": s.Right, "matched": s.Matched, "unmatched": s.Unmatched, "rows": s.Rows}
		if s.FanOut() > 0 {
			r.log.WithFields(fields).WithFields(logrus.Fields{"fan_out": s.FanOut(), "duplicate_keys": s.Duplicate}).
				Warn("join key is not unique on the right side; rows were duplicated")
		} else {
			r.log.WithFields(fields).Info("joined")
		}
	}

	r.stats.Primary = primary.Len()
	r.stats.Merged = out.Len()
	r.stats.FanOut = out.Len() - primary.Len()
	r.stats.Joins = stats
	metrics.RecordRow(cfg.Job, "merged", int64(out.Len()))
	metrics.RecordRow(cfg.Job, "fan_out", int64(r.stats.FanOut))
	return out, nil
}

func keySpec(k config.Key) merge.KeySpec {
	ks := merge.KeySpec{Column: k.Column, Sep: k.Separator}
	if ks.Column == "" {
		ks.Column = config.DefaultKeyColumn
	}
	if ks.Sep == "" {
		ks.Sep = merge.DefaultSep
	}
	copy(ks.Parts[:], k.Parts)
	return ks
}

func rangeOf(r config.Range) clean.Range {
	return clean.Range{Start: r.Start, End: r.End, AsDate: r.AsDate}
}

func cleanSpec(c config.Clean) clean.Spec {
	return clean.Spec{
		Order: c.Order,
		Impute: clean.ImputeSpec{
			Columns: c.Impute.Columns,
			GroupBy: c.Impute.GroupBy,
			Method:  c.Impute.Method,
		},
		Prune: clean.PruneSpec{
			MinNonMissing: c.MinNonMissing,
			Required:      c.Required,
		},
	}
}

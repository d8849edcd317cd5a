// Package loader reads every configured input into a table, concurrently.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"socioprep/internal/config"
	"socioprep/internal/datasource"
	"socioprep/internal/datasource/httpds"
	"socioprep/internal/parser"
	"socioprep/internal/table"
)

// ErrLoad wraps every loader failure.
var ErrLoad = errors.New("load input")

// Spec locates one input and says how to parse it.
type Spec struct {
	Path    string
	Options parser.Options
}

// SpecFromInput translates a config input into a Spec. infer_types defaults
// to true.
func SpecFromInput(in config.Input) Spec {
	return Spec{
		Path: in.Path,
		Options: parser.Options{
			Comma:      in.Options.Rune("comma", ','),
			TrimSpace:  in.Options.Bool("trim_space", false),
			InferTypes: in.Options.Bool("infer_types", true),
			Sheet:      in.Options.String("sheet", ""),
		},
	}
}

// Loader fetches and parses inputs.
type Loader struct {
	// HTTP is used for URL inputs; nil means a default client.
	HTTP *httpds.Client
	Log  logrus.FieldLogger
	// Limit caps concurrent fetches; 0 means no limit.
	Limit int
}

// Load reads every spec with default settings.
func Load(ctx context.Context, specs map[string]Spec) (map[string]*table.Table, error) {
	return (&Loader{}).Load(ctx, specs)
}

// Load reads every spec concurrently. The first failure cancels the rest and
// no partial result is returned.
func (l *Loader) Load(ctx context.Context, specs map[string]Spec) (map[string]*table.Table, error) {
	log := l.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	names := make([]string, 0, len(specs))
	for n := range specs {
		names = append(names, n)
	}
	sort.Strings(names)

	var (
		mu  sync.Mutex
		out = make(map[string]*table.Table, len(specs))
	)
	g, gctx := errgroup.WithContext(ctx)
	if l.Limit > 0 {
		g.SetLimit(l.Limit)
	}
	for _, name := range names {
		spec := specs[name]
		g.Go(func() error {
			start := time.Now()
			t, err := l.loadOne(gctx, name, spec)
			if err != nil {
				return fmt.Errorf("%w %q from %s: %w", ErrLoad, name, spec.Path, err)
			}
			log.WithFields(logrus.Fields{
				"table":   name,
				"path":    spec.Path,
				"rows":    humanize.Comma(int64(t.Len())),
				"columns": len(t.Columns),
				"took":    time.Since(start).Round(time.Millisecond),
			}).Info("input loaded")

			mu.Lock()
			out[name] = t
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) loadOne(ctx context.Context, name string, spec Spec) (*table.Table, error) {
	rc, err := datasource.For(spec.Path, l.HTTP).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return parser.ForPath(spec.Path, spec.Options).Parse(rc, name)
}

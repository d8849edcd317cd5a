package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"socioprep/internal/config"
	"socioprep/internal/output"
	"socioprep/internal/storage"
)

// StageExport labels the output stage.
const StageExport = "export"

// Export delivers res as configured: a preview on w (skipped when w is nil),
// an optional CSV file and an optional database table.
func Export(ctx context.Context, job string, out config.Output, res *Result, w io.Writer, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &run{ctx: ctx, cfg: config.Pipeline{Job: job}, log: log, stats: &res.Stats}
	return r.step(StageExport, func() error {
		if w != nil {
			if err := output.Preview(w, res.Table, out.PreviewRows); err != nil {
				return fmt.Errorf("preview: %w", err)
			}
		}
		if out.CSVPath != "" {
			if err := writeCSVFile(out.CSVPath, res); err != nil {
				return err
			}
			log.WithField("path", out.CSVPath).Info("csv written")
		}
		if out.Storage != nil {
			n, err := writeStorage(ctx, job, *out.Storage, res, log)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"kind": out.Storage.Kind, "table": out.Storage.Table, "rows": n}).Info("table stored")
		}
		return nil
	})
}

func writeCSVFile(path string, res *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := output.WriteCSV(f, res.Table); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeStorage(ctx context.Context, job string, sc config.Storage, res *Result, log logrus.FieldLogger) (int64, error) {
	repo, err := storage.New(ctx, storage.Config{
		Kind:    sc.Kind,
		DSN:     sc.DSN,
		Table:   sc.Table,
		Columns: res.Table.Columns,
	})
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	if sc.AutoCreateTable {
		td := storage.TableDef{FQN: sc.Table, Columns: storage.InferColumns(res.Table)}
		if err := storage.EnsureTable(ctx, sc.Kind, repo, td); err != nil {
			return 0, err
		}
	}
	return storage.WriteTable(ctx, repo, res.Table, storage.WriteOptions{BatchSize: sc.BatchSize, Job: job, Log: log})
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"socioprep/internal/metrics"
	"socioprep/internal/table"
)

// CopyFn inserts one batch and reports the rows inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn per non-empty batch. It returns the total reported by copyFn
// and the first error. Progress is logged after every flush.
func LoadBatches(
	ctx context.Context,
	log logrus.FieldLogger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (total int64, batches int64, err error) {
	if batchSize <= 0 {
		return 0, 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, 0, fmt.Errorf("copyFn must not be nil")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	var (
		batch     = make([][]any, 0, batchSize)
		start     = time.Now()
		lastFlush = start
		lastTotal int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = make([][]any, 0, batchSize)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{"inserted": n, "total": total}).Error("batch insert failed")
			return err
		}

		batches++
		now := time.Now()
		since := now.Sub(lastFlush)
		rps := float64(0)
		if since > 0 {
			rps = float64(total-lastTotal) / since.Seconds()
		}
		log.WithFields(logrus.Fields{
			"batch":    batches,
			"inserted": n,
			"total":    humanize.Comma(total),
			"rps":      fmt.Sprintf("%.0f", rps),
			"elapsed":  now.Sub(start).Truncate(time.Millisecond),
		}).Debug("batch flushed")
		lastFlush, lastTotal = now, total
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, batches, ctx.Err()
		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, batches, err
				}
				return total, batches, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, batches, err
				}
			}
		}
	}
}

// WriteOptions tune WriteTable.
type WriteOptions struct {
	BatchSize int
	// Job labels the batch metrics.
	Job string
	Log logrus.FieldLogger
}

// WriteTable inserts every row of t through repo in batches and returns the
// number of rows inserted.
func WriteTable(ctx context.Context, repo Repository, t *table.Table, opts WriteOptions) (int64, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	defs := InferColumns(t)
	rows := Rows(t, defs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan []any, opts.BatchSize)
	go func() {
		defer close(in)
		for _, r := range rows {
			select {
			case in <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	total, batches, err := LoadBatches(ctx, opts.Log, t.Columns, in, opts.BatchSize, repo.CopyFrom)
	metrics.RecordBatches(opts.Job, batches)
	metrics.RecordRow(opts.Job, "written", total)
	if err != nil {
		return total, fmt.Errorf("storage: write %q: %w", t.Name, err)
	}
	return total, nil
}

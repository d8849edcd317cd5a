package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"socioprep/internal/config"
	"socioprep/internal/datasource/httpds"
	"socioprep/internal/pipeline"
	"socioprep/internal/webui"
)

var errInvalidConfig = errors.New("configuration is invalid")

// loadPipeline decodes and validates the pipeline file. Warnings are logged,
// errors fail the command. An empty path selects the built-in pipeline.
func (a *app) loadPipeline(path string) (config.Pipeline, error) {
	var (
		p   config.Pipeline
		err error
	)
	if path == "" {
		p = config.Default()
	} else if p, err = config.Load(path); err != nil {
		return p, err
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		entry := a.log.WithField("path", iss.Path)
		if iss.Severity == config.SeverityError {
			entry.Error(iss.Message)
		} else {
			entry.Warn(iss.Message)
		}
	}
	if config.HasErrors(issues) {
		return p, fmt.Errorf("%w: %s", errInvalidConfig, path)
	}
	return p, nil
}

func (a *app) runPipeline(ctx context.Context, p config.Pipeline) (*pipeline.Result, error) {
	return pipeline.Run(ctx, p, pipeline.Deps{
		Log:  a.log,
		HTTP: httpds.NewClient(httpds.Config{UserAgent: "socioprep"}),
	})
}

func newRunCmd(a *app) *cobra.Command {
	var (
		cfgPath string
		preview int
		csvPath string
		stats   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline and print a preview of the cleaned table",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadPipeline(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("preview") {
				p.Output.PreviewRows = preview
			}
			if csvPath != "" {
				p.Output.CSVPath = csvPath
			}

			stop := a.setupMetrics(p.Job)
			defer stop()
			stopTracing, err := a.setupTracing()
			if err != nil {
				return err
			}
			defer stopTracing()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			res, err := a.runPipeline(ctx, p)
			if err != nil {
				return err
			}
			if err := pipeline.Export(ctx, p.Job, p.Output, res, a.stdout, a.log); err != nil {
				return err
			}
			if stats {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Stats)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Pipeline config (JSON or YAML); built-in pipeline when empty")
	cmd.Flags().IntVarP(&preview, "preview", "n", 5, "Number of rows to preview")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Also write the cleaned table to this CSV file")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print run statistics as JSON after the preview")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a pipeline config and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.loadPipeline(cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Configuration is valid: %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Pipeline config (JSON or YAML)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var (
		cfgPath string
		addr    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline once and serve the result over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadPipeline(cfgPath)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.env.HTTPAddr
			}

			stop := a.setupMetrics(p.Job)
			defer stop()
			stopTracing, err := a.setupTracing()
			if err != nil {
				return err
			}
			defer stopTracing()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			res, err := a.runPipeline(ctx, p)
			if err != nil {
				return err
			}
			srv := webui.NewServer(webui.Config{
				Addr:      addr,
				RateLimit: a.env.HTTPRateLimit,
				Burst:     a.env.HTTPBurst,
			}, res, a.log)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Pipeline config (JSON or YAML); built-in pipeline when empty")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; overrides SOCIOPREP_HTTP_ADDR")
	return cmd
}

func newDefaultsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the built-in pipeline config as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(config.Default())
		},
	}
}

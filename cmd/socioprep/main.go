package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"socioprep/internal/config"
	"socioprep/internal/logging"

	// register all backends with the storage factory.
	_ "socioprep/internal/storage/all"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs after the root has parsed the
// environment.
type app struct {
	stdout io.Writer
	stderr io.Writer

	envFile   string
	logLevel  string
	logFormat string

	env config.Env
	log *logrus.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "socioprep",
		Short: "Merge and clean socioeconomic indicator tables",
		Long: `socioprep loads poverty, schooling, education spending and coordinate
tables, normalizes their column names, joins them on a country/year key,
keeps an inclusive year window and fills or drops missing values.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&a.envFile, "env-file", "e", ".env", "Path to .env file")
	root.PersistentFlags().StringVarP(&a.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error); overrides SOCIOPREP_LOG_LEVEL")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (text, json); overrides SOCIOPREP_LOG_FORMAT")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newServeCmd(a),
		newDefaultsCmd(a),
	)
	return root
}

func (a *app) init() error {
	env, loaded, err := config.LoadEnv(a.envFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		env.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		env.LogFormat = a.logFormat
	}
	a.env = env
	a.log = logging.SetupTo(a.stderr, env.LogLevel, env.LogFormat)
	if loaded {
		a.log.WithField("file", a.envFile).Debug("environment loaded")
	}
	return nil
}

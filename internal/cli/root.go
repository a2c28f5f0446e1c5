// Package cli implements the piiscrub command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	piiscrub "github.com/supergoodsystems/pii-scrub"
	"github.com/supergoodsystems/pii-scrub/internal/logger"
	"github.com/supergoodsystems/pii-scrub/internal/shared"
)

type app struct {
	configPath    string
	dataScrubbing bool
	logLevel      string
	logFormat     string
	maxDepth      int
	hashKey       string
	outDir        string
	jobs          int

	log *slog.Logger
}

// NewRootCommand creates the piiscrub command and its subcommands.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "piiscrub",
		Short: "Scrub personal data from events and crash dumps",
		Long: `piiscrub applies a PII config to JSON events and raw crash dumps.

The config binds selectors such as "**$string" or "user.email" to rules that
remove, replace, mask or hash what they match. Files ending in .zst are read
and written zstd compressed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logger.ParseLevel(a.logLevel)
			if err != nil {
				return err
			}
			log, err := logger.New(cmd.ErrOrStderr(), level, a.logFormat)
			if err != nil {
				return err
			}
			a.log = log.With("run", uuid.NewString())
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "PII config document (YAML or JSON)")
	flags.BoolVar(&a.dataScrubbing, "data-scrubbing", false, "read the config as legacy data scrubbing settings")
	flags.StringVar(&a.logLevel, "log-level", os.Getenv(shared.EnvLogLevel), "debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", logger.FormatText, "text or json")
	flags.IntVar(&a.maxDepth, "max-depth", 0, "deepest level of an event that is scrubbed")
	flags.StringVar(&a.hashKey, "hash-key", "", "key for the hash method when the config has none")

	root.AddCommand(
		newEventCommand(a),
		newMinidumpCommand(a),
		newCheckCommand(a),
		newCategoriesCommand(),
	)
	return root
}

// Execute runs the piiscrub command and exits on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&a.outDir, "out", "o", "", "directory for scrubbed files (defaults to next to each input)")
	cmd.Flags().IntVarP(&a.jobs, "jobs", "j", runtime.NumCPU(), "files scrubbed concurrently")
}

func (a *app) options() *piiscrub.Options {
	return &piiscrub.Options{
		MaxDepth: a.maxDepth,
		HashKey:  a.hashKey,
		Logger:   a.log,
	}
}

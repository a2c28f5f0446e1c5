package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
	piiscrub "github.com/supergoodsystems/pii-scrub"
)

func newMinidumpCommand(a *app) *cobra.Command {
	var (
		skipUTF16 bool
		filler    string
	)
	cmd := &cobra.Command{
		Use:   "minidump [file...]",
		Short: "Scrub crash dumps and other binary files",
		Long: `Overwrite every match of the buffer rules of --config in binary files.

Rules bound under a "$binary" selector are used when there are any, otherwise
every pattern and builtin rule of the config. Scrubbed files keep their size.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := a.loadRules()
			if err != nil {
				return err
			}
			opts := a.options()
			opts.SkipUTF16 = skipUTF16
			opts.InPlace = true
			if filler != "" {
				b := filler[0]
				opts.Filler = &b
			}
			return eachFile(cmd.Context(), inputsOf(args), a.jobs, func(in string) error {
				buf, err := readInput(in, cmd.InOrStdin())
				if err != nil {
					return err
				}
				out, count, err := piiscrub.ScrubBuffer(rules, buf, opts)
				if err != nil {
					return err
				}
				if err := writeOutput(outputPath(in, a.outDir), out, cmd.OutOrStdout()); err != nil {
					return err
				}
				a.log.Info("scrubbed buffer", slog.String("file", in), slog.Int("bytes", len(out)), slog.Int("matches", count))
				return nil
			})
		},
	}
	a.addOutputFlags(cmd)
	cmd.Flags().BoolVar(&skipUTF16, "skip-utf16", false, "do not scan UTF-16LE text")
	cmd.Flags().StringVar(&filler, "filler", "", "byte written over matches (defaults to x)")
	return cmd
}

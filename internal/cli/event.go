package cli

import (
	"encoding/json"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	piiscrub "github.com/supergoodsystems/pii-scrub"
	"github.com/supergoodsystems/pii-scrub/pkg/event"
)

func newEventCommand(a *app) *cobra.Command {
	var withMeta bool
	cmd := &cobra.Command{
		Use:   "event [file...]",
		Short: "Scrub JSON events",
		Long: `Scrub JSON events with the rules of --config.

Each file is written next to the input as <name>.scrubbed.json, or into --out.
Without files the event is read from stdin and written to stdout. With --meta
the output is {"event": ..., "meta": ...}, where meta lists every change by
path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := a.loadRules()
			if err != nil {
				return err
			}
			o := a.options()
			o.InPlace = true
			return eachFile(cmd.Context(), inputsOf(args), a.jobs, func(in string) error {
				body, err := readInput(in, cmd.InOrStdin())
				if err != nil {
					return err
				}
				tree, err := event.Parse(body)
				if err != nil {
					return errors.Wrapf(err, "parsing %s", in)
				}
				out, m, err := piiscrub.ScrubEvent(rules, tree, o)
				if err != nil {
					return err
				}

				encoded, err := out.MarshalJSON()
				if err != nil {
					return err
				}
				if withMeta {
					encoded, err = json.Marshal(struct {
						Event json.RawMessage `json:"event"`
						Meta  any             `json:"meta"`
					}{encoded, m})
					if err != nil {
						return err
					}
				}
				if in == stdio {
					encoded = append(encoded, '\n')
				}
				if err := writeOutput(outputPath(in, a.outDir), encoded, cmd.OutOrStdout()); err != nil {
					return err
				}
				a.log.Info("scrubbed event", slog.String("file", in), slog.Int("remarks", m.Len()))
				return nil
			})
		},
	}
	a.addOutputFlags(cmd)
	cmd.Flags().BoolVar(&withMeta, "meta", false, "wrap each event with the record of changes")
	return cmd
}

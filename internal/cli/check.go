package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	piiconfig "github.com/supergoodsystems/pii-scrub/pkg/pii-config"
)

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate a config",
		Long: `Parse and compile --config, reporting the first error with its position
and every warning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := a.loadRules()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, warning := range rules.Warnings() {
				fmt.Fprintf(w, "warning: %v\n", warning)
			}
			fmt.Fprintf(w, "%s: ok, %d buffer rules\n", a.configPath, len(rules.BinaryRules()))
			return nil
		},
	}
}

func newCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the builtin rule categories",
		Long: `List the builtin categories. Reference them in a config as "@<category>"
or "@<category>:<method>", or use "@common" for the usual set.`,
		Args: cobra.NoArgs,
		// categories needs no logger
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range piiconfig.Categories() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after gripes.yaml and GRIPES_* variables are applied,
in gripes.yaml format, followed by which API keys are set. Key values are never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		data, err := cfg.YAML()
		if err != nil {
			return err
		}
		fmt.Fprint(w, string(data))

		status := cfg.Keys.KeyStatus()
		names := make([]string, 0, len(status))
		for name := range status {
			names = append(names, name)
		}
		sort.Strings(names)

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Fprintf(w, "\n# API keys\n")
		for _, name := range names {
			if status[name] {
				fmt.Fprintf(w, "# %s %s\n", green("✓"), name)
			} else {
				fmt.Fprintf(w, "# %s %s %s\n", gray("✗"), name, gray("(not set)"))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

package main

import (
	"github.com/spf13/cobra"
)

type runReport struct {
	loadReport
	Command string `json:"command"`
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <plugin-dir> <command>",
		Short: "Load a plugin and run one of its commands",
		Long: `Load a plugin directory, call the export bound to one of the commands in its
manifest, then print the toasts and events the plugin produced.

Example:
  hookwarden run ./plugins/hello-world hello`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			p, err := rt.manager.Load(ctx, args[0])
			if err != nil {
				return err
			}
			if err := rt.manager.RunCommand(ctx, p.ID(), args[1]); err != nil {
				return err
			}

			report := runReport{
				loadReport: loadReport{ID: p.ID(), Checksum: p.Checksum, Hooks: p.Hooks},
				Command:    args[1],
			}
			if err := reportInstance(&report.loadReport, p.Instance); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

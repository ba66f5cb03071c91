package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/hookwarden/executor"
	"github.com/caffeineduck/hookwarden/hostfunc"
)

type loadReport struct {
	ID          string                       `json:"id"`
	Checksum    string                       `json:"checksum"`
	Hooks       int                          `json:"hooks"`
	Exports     []string                     `json:"exports,omitempty"`
	Widgets     map[hostfunc.Region][]string `json:"widgets,omitempty"`
	Keybindings map[string]string            `json:"keybindings,omitempty"`
	Toasts      []hostfunc.Toast             `json:"toasts,omitempty"`
	Events      []hostfunc.Event             `json:"events,omitempty"`
}

func reportInstance(r *loadReport, inst *executor.Instance) error {
	r.Exports = inst.Exports()

	st := inst.State()
	var err error
	if r.Widgets, err = st.Widgets(); err != nil {
		return err
	}
	if r.Keybindings, err = st.Keybindings(); err != nil {
		return err
	}
	if r.Toasts, err = st.Toasts(); err != nil {
		return err
	}
	r.Events, err = st.Events()
	return err
}

func newLoadCmd(a *app) *cobra.Command {
	var id, checksum, signature string

	cmd := &cobra.Command{
		Use:   "load <plugin-dir|file.wasm>",
		Short: "Verify and load a plugin, run its init, and print what it registered",
		Long: `Load a plugin the way the host would: verify it, instantiate it, run its
init export, then print the widgets, keybindings, toasts and events it
produced. The plugin is unloaded before exiting.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			rt, err := newRuntime(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			info, err := os.Stat(path)
			if err != nil {
				return err
			}

			var report loadReport
			if info.IsDir() {
				p, err := rt.manager.Load(ctx, path)
				if err != nil {
					return err
				}
				report.ID = p.ID()
				report.Checksum = p.Checksum
				report.Hooks = p.Hooks
				if p.Instance != nil {
					if err := reportInstance(&report, p.Instance); err != nil {
						return err
					}
				}
				return writeJSON(cmd.OutOrStdout(), report)
			}

			t, err := resolveTarget(path, checksum, signature)
			if err != nil {
				return err
			}
			if id == "" {
				id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			cwd, _ := os.Getwd()

			inst, err := rt.exec.Load(ctx, id, t.data, hostfunc.PluginContext{Cwd: cwd}, t.loadOptions()...)
			if err != nil {
				return err
			}
			report.ID = inst.ID()
			report.Checksum = inst.Checksum()
			if err := reportInstance(&report, inst); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Plugin id for a bare module (default: file name)")
	cmd.Flags().StringVar(&checksum, "checksum", "", "Expected SHA-256, hex")
	cmd.Flags().StringVar(&signature, "signature", "", "Detached ed25519 signature, hex")
	return cmd
}

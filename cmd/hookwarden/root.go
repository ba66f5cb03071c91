package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/caffeineduck/hookwarden/config"
	"github.com/caffeineduck/hookwarden/logging"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:   "hookwarden",
		Short: "Load, verify and run agent extension plugins",
		Long: `hookwarden - Run untrusted agent extensions behind a narrow capability bridge.

Plugins are WebAssembly modules or Lua scripts that hook tool calls, chat
messages, permission requests and session lifecycle events. Modules are
checked against a SHA-256 checksum and an ed25519 signature before they are
compiled, and only system-trusted sources may grant permissions.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.log == nil {
				return nil
			}
			return a.log.Close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Config file (default: ./hookwarden.yaml)")
	flags.String("plugins", "", "Plugin directory")
	flags.Bool("require-signature", false, "Reject plugins without a valid signature")
	flags.Bool("require-checksum", false, "Reject plugins without a checksum")
	flags.StringSlice("trusted-key", nil, "Trusted ed25519 public key, hex (repeatable)")
	flags.StringSlice("system-source", nil, "Hook source allowed to grant permissions (repeatable)")
	flags.String("log-level", "", "Log level: trace, debug, info, warn, error")
	flags.String("log-file", "", "Also write JSON logs to this file")

	cmd.AddCommand(
		newKeygenCmd(),
		newSignCmd(),
		newChecksumCmd(),
		newVerifyCmd(a),
		newLoadCmd(a),
		newDispatchCmd(a),
		newRunCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	l, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.log = l
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/hookwarden/signing"
)

func newKeygenCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 signing key pair",
		Long: `Generate an ed25519 key pair, printed as hex.

With --out, the private key is written to <out>.key (mode 0600) and the
public key to <out>.pub instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := signing.GenerateKey()
			if err != nil {
				return err
			}
			pubHex := hex.EncodeToString(pub)
			privHex := hex.EncodeToString(priv)

			if out == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "public:  %s\nprivate: %s\n", pubHex, privHex)
				return nil
			}

			if err := os.WriteFile(out+".key", []byte(privHex+"\n"), 0o600); err != nil {
				return fmt.Errorf("write private key: %w", err)
			}
			if err := os.WriteFile(out+".pub", []byte(pubHex+"\n"), 0o644); err != nil {
				return fmt.Errorf("write public key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "public:  %s\nwrote %s.key and %s.pub\n", pubHex, out, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write keys to <out>.key and <out>.pub")
	return cmd
}

func newSignCmd() *cobra.Command {
	var key, keyFile string

	cmd := &cobra.Command{
		Use:   "sign <file>",
		Short: "Print a detached hex signature for a plugin file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyFile != "" {
				data, err := os.ReadFile(keyFile)
				if err != nil {
					return fmt.Errorf("read key file: %w", err)
				}
				key = strings.TrimSpace(string(data))
			}
			if key == "" {
				return errors.New("a private key is required: use --key or --key-file")
			}

			priv, err := signing.ParsePrivateKeyHex(key)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(signing.Sign(priv, data)))
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Private key or seed, hex")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "File holding the hex private key")
	return cmd
}

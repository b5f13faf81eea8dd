package cmd

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sealpost/sealpost/internal/envelope"
	"github.com/sealpost/sealpost/internal/envelope/hybrid"
	"github.com/sealpost/sealpost/internal/envelope/jose"
	"github.com/sealpost/sealpost/pkg/config"
	"github.com/sealpost/sealpost/pkg/pathutils"
)

type openOptions struct {
	in             string
	privateKeyPath string
	showKeys       bool
}

var openOpts openOptions

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open an envelope with the RSA private key",
	Long: `Decrypts an envelope and prints the plaintext. This is the inverse of
seal and is meant for verifying envelopes during development.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context(), global)
		if err != nil {
			return err
		}

		privateKey, err := envelope.LoadPrivateKeyFromPEMFile(pathutils.ExpandHome(openOpts.privateKeyPath))
		if err != nil {
			return err
		}

		sealed, err := readInput(openOpts.in, cmd.InOrStdin())
		if err != nil {
			return err
		}

		plaintext, err := openEnvelope(cmd.Context(), cfg, privateKey, sealed, openOpts.showKeys, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		_, err = fmt.Fprint(cmd.OutOrStdout(), plaintext)
		return err
	},
}

// openEnvelope decrypts sealed. With showKeys, the recovered IV and AES key of
// a hybrid envelope are written to keysOut.
func openEnvelope(ctx context.Context, cfg config.Config, privateKey *rsa.PrivateKey, sealed string, showKeys bool, keysOut io.Writer) (string, error) {
	if cfg.Envelope.Format == config.FormatJWE {
		plaintext, kid, err := jose.Decrypt(ctx, privateKey, strings.TrimSpace(sealed))
		if err != nil {
			return "", err
		}
		if showKeys {
			fmt.Fprintf(keysOut, "kid: %s\n", kid)
		}
		return string(plaintext), nil
	}

	opts, err := hybridOptions(cfg)
	if err != nil {
		return "", err
	}

	dec, err := hybrid.NewDecryptor(privateKey, opts...)
	if err != nil {
		return "", err
	}

	opened, err := dec.Open(ctx, sealed)
	if err != nil {
		return "", err
	}

	if showKeys {
		fmt.Fprintf(keysOut, "iv:  %s\n", base64.StdEncoding.EncodeToString(opened.IV))
		fmt.Fprintf(keysOut, "key: %s\n", base64.StdEncoding.EncodeToString(opened.Key))
	}

	return opened.Text, nil
}

func init() {
	rootCmd.AddCommand(openCmd)
	openCmd.Flags().StringVarP(&openOpts.in, "in", "i", "-", "File to read the envelope from, or - for stdin.")
	openCmd.Flags().StringVar(&openOpts.privateKeyPath, "private-key", "", "Path to the PEM encoded RSA private key.")
	openCmd.Flags().BoolVar(&openOpts.showKeys, "show-keys", false, "Print the recovered IV and AES key to stderr.")
	_ = openCmd.MarkFlagRequired("private-key")
}

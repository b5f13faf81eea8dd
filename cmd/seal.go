package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/sealpost/sealpost/pkg/config"
	"github.com/sealpost/sealpost/pkg/logs"
)

type sealOptions struct {
	in  string
	out string
}

var sealOpts sealOptions

var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Seal a plaintext into an envelope",
	Long: `Reads a plaintext and prints the sealed envelope. The plaintext is used
exactly as read, including any trailing newline.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context(), global)
		if err != nil {
			return err
		}

		plaintext, err := readInput(sealOpts.in, cmd.InOrStdin())
		if err != nil {
			return err
		}

		sealed, err := sealPlaintext(cmd.Context(), cfg, plaintext)
		if err != nil {
			return err
		}

		return writeOutput(sealOpts.out, cmd.OutOrStdout(), sealed)
	},
}

func sealPlaintext(ctx context.Context, cfg config.Config, plaintext string) (string, error) {
	enc, err := newEncryptor(ctx, cfg)
	if err != nil {
		return "", err
	}

	sealed, err := enc.Encrypt(ctx, plaintext)
	if err != nil {
		return "", err
	}

	klog.FromContext(ctx).V(logs.Debug).Info("Sealed plaintext", "format", cfg.Envelope.Format, "plaintextLength", len(plaintext), "envelopeLength", len(sealed))

	return sealed, nil
}

func init() {
	rootCmd.AddCommand(sealCmd)
	sealCmd.Flags().StringVarP(&sealOpts.in, "in", "i", "-", "File to read the plaintext from, or - for stdin.")
	sealCmd.Flags().StringVarP(&sealOpts.out, "out", "o", "-", "File to write the envelope to, or - for stdout.")
}

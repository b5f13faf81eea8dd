package cmd

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/sealpost/sealpost/internal/envelope"
)

const (
	privateKeyFile = "private.pem"
	publicKeyFile  = "public.pem"
)

type keygenOptions struct {
	outDir string
	bits   int
	force  bool
}

var keygenOpts keygenOptions

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an RSA keypair for sealing envelopes",
	Long: `Writes a new RSA keypair to the output directory: private.pem holds the
PKCS#1 private key and public.pem the SPKI public key. Pass public.pem to
--public-key when sealing and private.pem to --private-key when opening.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		privatePath, publicPath, err := generateKeyPair(keygenOpts.outDir, keygenOpts.bits, keygenOpts.force)
		if err != nil {
			return err
		}

		klog.FromContext(cmd.Context()).Info("Generated keypair", "bits", keygenOpts.bits, "privateKey", privatePath, "publicKey", publicPath)
		return nil
	},
}

// generateKeyPair writes a new keypair into dir and returns the paths written.
// Existing files are only replaced when force is set.
func generateKeyPair(dir string, bits int, force bool) (string, string, error) {
	if bits < envelope.MinRSAKeySize {
		return "", "", fmt.Errorf("RSA key size must be at least %d bits, got %d", envelope.MinRSAKeySize, bits)
	}

	privatePath := filepath.Join(dir, privateKeyFile)
	publicPath := filepath.Join(dir, publicKeyFile)

	if !force {
		for _, p := range []string{privatePath, publicPath} {
			if _, err := os.Stat(p); err == nil {
				return "", "", fmt.Errorf("%s already exists, use --force to overwrite it", p)
			}
		}
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate RSA key: %w", err)
	}

	privatePEM, publicPEM, err := envelope.EncodeKeyPair(key)
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(privatePath, privatePEM, 0600); err != nil {
		return "", "", fmt.Errorf("failed to write private key: %w", err)
	}

	if err := os.WriteFile(publicPath, publicPEM, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write public key: %w", err)
	}

	return privatePath, publicPath, nil
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenOpts.outDir, "out-dir", ".", "Directory to write private.pem and public.pem to.")
	keygenCmd.Flags().IntVar(&keygenOpts.bits, "bits", envelope.MinRSAKeySize, "RSA key size in bits.")
	keygenCmd.Flags().BoolVar(&keygenOpts.force, "force", false, "Overwrite existing key files.")
}

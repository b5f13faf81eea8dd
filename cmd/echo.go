package cmd

import (
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/sealpost/sealpost/internal/envelope"
	"github.com/sealpost/sealpost/pkg/echo"
	"github.com/sealpost/sealpost/pkg/pathutils"
)

type echoOptions struct {
	listen         string
	privateKeyPath string
	token          string
	showKeys       bool
}

var echoOpts echoOptions

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "starts an echo server to test sealpost",
	Long: `sealpost post sends envelopes to a server. This echo server can act as
that server: it opens every envelope with the private key and prints the
plaintext it received.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context(), global)
		if err != nil {
			return err
		}

		privateKey, err := envelope.LoadPrivateKeyFromPEMFile(pathutils.ExpandHome(echoOpts.privateKeyPath))
		if err != nil {
			return err
		}

		encoding, err := envelope.ParsePlaintextEncoding(cfg.Envelope.PlaintextEncoding)
		if err != nil {
			return err
		}

		server, err := echo.NewServer(klog.FromContext(cmd.Context()), privateKey, echo.Options{
			Listen:            echoOpts.listen,
			AllowedToken:      echoOpts.token,
			Format:            cfg.Envelope.Format,
			PlaintextEncoding: encoding,
			ShowKeys:          echoOpts.showKeys,
			Out:               cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}

		return server.ListenAndServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(echoCmd)
	echoCmd.Flags().StringVarP(
		&echoOpts.listen,
		"listen",
		"l",
		":8080",
		"Address where to listen.",
	)
	echoCmd.Flags().StringVar(
		&echoOpts.privateKeyPath,
		"private-key",
		"",
		"Path to the PEM encoded RSA private key used to open envelopes.",
	)
	echoCmd.Flags().StringVar(
		&echoOpts.token,
		"token",
		"",
		"If set, requests must carry this bearer token.",
	)
	echoCmd.Flags().BoolVar(
		&echoOpts.showKeys,
		"show-keys",
		false,
		"Print the recovered IV and AES key of every envelope.",
	)
	_ = echoCmd.MarkFlagRequired("private-key")
}

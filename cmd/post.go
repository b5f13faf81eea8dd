package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/sealpost/sealpost/pkg/transport"
)

type postOptions struct {
	in       string
	endpoint string
	token    string
	noRetry  bool
}

var postOpts postOptions

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Seal a plaintext and POST the envelope",
	Long: `Seals a plaintext and sends the envelope once as a text/plain body.
Server errors and rate limiting are retried with exponential backoff until
transport.max-retry-time has passed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := klog.FromContext(ctx).WithName("post")

		cfg, err := loadConfig(ctx, global)
		if err != nil {
			return err
		}

		if postOpts.endpoint != "" {
			cfg.Transport.Endpoint = postOpts.endpoint
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
		}

		if cfg.Transport.Endpoint == "" {
			return fmt.Errorf("no endpoint configured: use --endpoint or set transport.endpoint in the config file")
		}

		plaintext, err := readInput(postOpts.in, cmd.InOrStdin())
		if err != nil {
			return err
		}

		sealed, err := sealPlaintext(ctx, cfg, plaintext)
		if err != nil {
			return err
		}

		poster, err := transport.NewPoster(cfg.Transport.Endpoint, postOpts.token, cfg.Transport.Timeout)
		if err != nil {
			return err
		}

		if postOpts.noRetry {
			err = poster.Post(ctx, sealed)
		} else {
			err = transport.PostWithRetry(ctx, poster, sealed, cfg.Transport.MaxRetryTime)
		}
		if err != nil {
			return fmt.Errorf("failed to post envelope: %w", err)
		}

		log.Info("Envelope posted", "endpoint", cfg.Transport.Endpoint)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(postCmd)
	postCmd.Flags().StringVarP(&postOpts.in, "in", "i", "-", "File to read the plaintext from, or - for stdin.")
	postCmd.Flags().StringVar(&postOpts.endpoint, "endpoint", "", "URL to POST the envelope to. Overrides transport.endpoint.")
	postCmd.Flags().StringVar(&postOpts.token, "token", "", "Bearer token sent in the Authorization header.")
	postCmd.Flags().BoolVar(&postOpts.noRetry, "no-retry", false, "Send the envelope once without retrying.")
}

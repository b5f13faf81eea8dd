package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/sealpost/sealpost/pkg/logs"
)

// globalOptions are the persistent flags shared by every command. Non-empty
// values override the config file.
type globalOptions struct {
	configPath        string
	publicKeyPath     string
	jwksURL           string
	keyID             string
	format            string
	escaping          string
	plaintextEncoding string
}

var global globalOptions

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sealpost",
	Short: "Hybrid RSA/AES envelope encryption for HTTP payloads",
	Long: `sealpost seals text payloads into hybrid envelopes: the payload is
encrypted with a fresh AES-256-CBC key, and that key is wrapped with an
RSA-OAEP public key. The envelope is a single base64 string which can be
posted as a text/plain body.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logs.Initialize(); err != nil {
			return err
		}
		cmd.SetContext(klog.NewContext(cmd.Context(), klog.Background()))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&global.configPath, "config", "c", "", "Path to the sealpost YAML config file.")
	pf.StringVar(&global.publicKeyPath, "public-key", "", "Path to a PEM encoded RSA public key. Defaults to the embedded key.")
	pf.StringVar(&global.jwksURL, "jwks-url", "", "URL of a JWKS document to fetch the RSA-OAEP-256 public key from.")
	pf.StringVar(&global.keyID, "key-id", "", `Key ID sent in the JWE "kid" header when the key source does not provide one.`)
	pf.StringVar(&global.format, "format", "", `Envelope format: "hybrid" or "jwe". (default "hybrid")`)
	pf.StringVar(&global.escaping, "escaping", "", `Escaping applied to base64 segments: "none" or "uri". (default "none")`)
	pf.StringVar(&global.plaintextEncoding, "plaintext-encoding", "", `How plaintext is turned into bytes: "charcode" or "utf8". (default "charcode")`)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	logs.AddFlags(rootCmd.PersistentFlags())

	setFlagsFromEnv("SEALPOST_", rootCmd.PersistentFlags())
	for _, command := range rootCmd.Commands() {
		setFlagsFromEnv("SEALPOST_", command.Flags())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func setFlagsFromEnv(prefix string, fs *pflag.FlagSet) {
	set := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) {
		set[f.Name] = true
	})
	fs.VisitAll(func(f *pflag.Flag) {
		// ignore flags set from the commandline
		if set[f.Name] {
			return
		}
		// remove trailing _ to reduce common errors with the prefix, i.e. people setting it to MY_PROG_
		cleanPrefix := strings.TrimSuffix(prefix, "_")
		name := fmt.Sprintf("%s_%s", cleanPrefix, strings.Replace(strings.ToUpper(f.Name), "-", "_", -1))
		if e, ok := os.LookupEnv(name); ok {
			_ = fs.Set(f.Name, e)
		}
	})
}

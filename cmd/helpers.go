package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"k8s.io/client-go/transport"
	"k8s.io/klog/v2"

	"github.com/sealpost/sealpost/internal/envelope"
	"github.com/sealpost/sealpost/internal/envelope/embedded"
	"github.com/sealpost/sealpost/internal/envelope/hybrid"
	"github.com/sealpost/sealpost/internal/envelope/jose"
	"github.com/sealpost/sealpost/internal/envelope/keyfetch"
	"github.com/sealpost/sealpost/pkg/config"
	"github.com/sealpost/sealpost/pkg/logs"
	"github.com/sealpost/sealpost/pkg/pathutils"
	"github.com/sealpost/sealpost/pkg/version"
)

func printVersion(w io.Writer, verbose bool) {
	fmt.Fprintln(w, "Sealpost version: ", version.SealpostVersion, runtime.GOOS+"/"+runtime.GOARCH)
	if verbose {
		fmt.Fprintln(w, "  Commit: ", version.Commit)
		fmt.Fprintln(w, "  Built:  ", version.BuildDate)
		goVersion := version.GoVersion
		if goVersion == "" {
			goVersion = runtime.Version()
		}
		fmt.Fprintln(w, "  Go:     ", goVersion)
	}
}

// loadConfig reads the config file, if one was given, and applies the global
// flag overrides on top of it.
func loadConfig(ctx context.Context, opts globalOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		cfg, err = config.Load(pathutils.ExpandHome(opts.configPath))
		if err != nil {
			return cfg, err
		}
	}

	// A key source given on the command line replaces the one from the file.
	if opts.publicKeyPath != "" {
		cfg.Key.Path = opts.publicKeyPath
		cfg.Key.JWKSURL = ""
	}
	if opts.jwksURL != "" {
		cfg.Key.JWKSURL = opts.jwksURL
		cfg.Key.Path = ""
	}
	if opts.keyID != "" {
		cfg.Key.KeyID = opts.keyID
	}
	if opts.format != "" {
		cfg.Envelope.Format = opts.format
	}
	if opts.escaping != "" {
		cfg.Envelope.Escaping = opts.escaping
	}
	if opts.plaintextEncoding != "" {
		cfg.Envelope.PlaintextEncoding = opts.plaintextEncoding
	}

	cfg.Key.Path = pathutils.ExpandHome(cfg.Key.Path)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	dump, err := cfg.Dump()
	if err != nil {
		return cfg, err
	}
	klog.FromContext(ctx).V(logs.Debug).Info("Loaded config", "config", dump)

	return cfg, nil
}

// newKeyProvider returns the source of the wrapping key and the key ID to
// label envelopes with.
func newKeyProvider(ctx context.Context, cfg config.Config) (envelope.KeyProvider, string, error) {
	log := klog.FromContext(ctx).WithName("keys")

	switch {
	case cfg.Key.JWKSURL != "":
		client, err := keyfetch.NewClient(cfg.Key.JWKSURL, cfg.Key.CacheTTL, &http.Client{
			Timeout:   cfg.Transport.Timeout,
			Transport: transport.DebugWrappers(http.DefaultTransport),
		})
		if err != nil {
			return nil, "", err
		}

		// The client supplies the kid of every key it fetches; the configured
		// ID is only used for keys published without one.
		log.V(logs.Debug).Info("Using JWKS key source", "url", cfg.Key.JWKSURL)
		return client, cfg.Key.KeyID, nil

	case cfg.Key.Path != "":
		key, err := envelope.LoadPublicKeyFromPEMFile(cfg.Key.Path)
		if err != nil {
			return nil, "", err
		}

		keyID := cfg.Key.KeyID
		if keyID == "" {
			keyID = strings.TrimSuffix(filepath.Base(cfg.Key.Path), filepath.Ext(cfg.Key.Path))
		}

		log.V(logs.Debug).Info("Using public key file", "path", cfg.Key.Path, "bits", key.N.BitLen())
		return envelope.StaticKey{Key: key}, keyID, nil

	default:
		keyID := cfg.Key.KeyID
		if keyID == "" {
			keyID = embedded.KeyID
		}

		log.V(logs.Debug).Info("Using embedded public key", "kid", keyID)
		return embedded.Provider{}, keyID, nil
	}
}

// newEncryptor builds the encryptor selected by cfg.Envelope.Format.
func newEncryptor(ctx context.Context, cfg config.Config) (envelope.Encryptor, error) {
	keys, keyID, err := newKeyProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Envelope.Format == config.FormatJWE {
		return jose.NewEncryptor(keyID, keys)
	}

	opts, err := hybridOptions(cfg)
	if err != nil {
		return nil, err
	}

	return hybrid.NewEncryptor(keys, opts...)
}

func hybridOptions(cfg config.Config) ([]hybrid.Option, error) {
	escaping, err := envelope.ParseEscaping(cfg.Envelope.Escaping)
	if err != nil {
		return nil, err
	}

	encoding, err := envelope.ParsePlaintextEncoding(cfg.Envelope.PlaintextEncoding)
	if err != nil {
		return nil, err
	}

	return []hybrid.Option{
		hybrid.WithEscaping(escaping),
		hybrid.WithPlaintextEncoding(encoding),
	}, nil
}

// readInput reads all of path, or stdin when path is "-" or empty.
func readInput(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)

	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return string(data), nil
}

// writeOutput writes data followed by a newline to path, or to stdout when
// path is "-" or empty.
func writeOutput(path string, stdout io.Writer, data string) error {
	if path == "" || path == "-" {
		_, err := fmt.Fprintln(stdout, data)
		return err
	}

	if err := os.WriteFile(path, []byte(data+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

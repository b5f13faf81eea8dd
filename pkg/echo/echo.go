// Package echo is a test server which accepts posted envelopes, opens them with a private key and prints the
// recovered plaintext. It stands in for the real envelope recipient during development.
package echo

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sealpost/sealpost/internal/envelope"
	"github.com/sealpost/sealpost/internal/envelope/hybrid"
	"github.com/sealpost/sealpost/internal/envelope/jose"
	"github.com/sealpost/sealpost/pkg/config"
	"github.com/sealpost/sealpost/pkg/logs"
)

// maxBodySize bounds the envelope size the server is willing to read.
const maxBodySize = 8 << 20

// Options configure a Server.
type Options struct {
	// Listen is the address to listen on, for example ":8080".
	Listen string

	// AllowedToken, if set, must be presented as a bearer token.
	AllowedToken string

	// Format is config.FormatHybrid or config.FormatJWE.
	Format string

	// PlaintextEncoding is used to turn hybrid plaintext bytes back into text.
	PlaintextEncoding envelope.PlaintextEncoding

	// ShowKeys prints the recovered IV and AES key of hybrid envelopes.
	ShowKeys bool

	// Out receives the coloured output. Defaults to color.Output.
	Out io.Writer
}

// Server opens every envelope it receives.
type Server struct {
	opts       Options
	privateKey *rsa.PrivateKey
	decryptor  *hybrid.Decryptor
	logger     logr.Logger
	metrics    *metrics
}

// Response is the JSON body returned for an accepted envelope.
type Response struct {
	Status string `json:"status"`
	Bytes  int    `json:"bytes"`
}

// NewServer returns a Server opening envelopes with privateKey.
func NewServer(logger logr.Logger, privateKey *rsa.PrivateKey, opts Options) (*Server, error) {
	if opts.Out == nil {
		opts.Out = color.Output
	}

	if opts.Format == "" {
		opts.Format = config.FormatHybrid
	}

	s := &Server{
		opts:       opts,
		privateKey: privateKey,
		logger:     logger.WithName("echo"),
		metrics:    newMetrics(),
	}

	switch opts.Format {
	case config.FormatHybrid:
		dec, err := hybrid.NewDecryptor(privateKey, hybrid.WithPlaintextEncoding(opts.PlaintextEncoding))
		if err != nil {
			return nil, err
		}
		s.decryptor = dec
	case config.FormatJWE:
		if privateKey == nil {
			return nil, fmt.Errorf("RSA private key cannot be nil")
		}
	default:
		return nil, fmt.Errorf("unknown envelope format %q", opts.Format)
	}

	return s, nil
}

// Handler serves envelopes on every path except /metrics, which exposes the
// server's Prometheus metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	mux.Handle("/", s)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logs.NewStdLogger("echo"),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening to requests", "address", s.opts.Listen, "format", s.opts.Format)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down echo server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// ServeHTTP opens a single posted envelope.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	log := s.logger.WithValues("requestID", requestID)

	code, err := s.checkAuthorization(w, r)
	if err != nil {
		s.writeError(w, err.Error(), code)
		return
	}

	if r.Method != http.MethodPost {
		s.writeError(w, fmt.Sprintf("invalid method. Expected POST, received %s", r.Method), http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, fmt.Sprintf("reading body: %s", err), http.StatusRequestEntityTooLarge)
		return
	}

	text, err := s.open(r, string(body))
	if err != nil {
		s.metrics.envelopes.WithLabelValues(s.opts.Format, "error").Inc()
		log.V(logs.Debug).Info("Failed to open envelope", "envelopeLength", len(body), "err", err.Error())

		code := http.StatusInternalServerError
		if errors.Is(err, envelope.ErrEncoding) {
			code = http.StatusBadRequest
		}
		s.writeError(w, fmt.Sprintf("opening envelope: %s", err), code)
		return
	}

	resp, err := json.Marshal(Response{Status: "ok", Bytes: len(body)})
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	green := color.New(color.FgGreen)
	_, _ = green.Fprintf(s.opts.Out, "-- %s %s -> created %d\n", r.Method, r.URL.Path, http.StatusCreated)
	_, _ = color.New(color.FgYellow).Fprintf(s.opts.Out, "%s\n", text)
	_, _ = green.Fprintln(s.opts.Out, "-----")

	s.metrics.envelopes.WithLabelValues(s.opts.Format, "ok").Inc()
	s.metrics.envelopeSize.WithLabelValues(s.opts.Format).Observe(float64(len(body)))

	log.V(logs.Debug).Info("Opened envelope", "path", r.URL.Path, "envelopeLength", len(body), "plaintextLength", len(text))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(resp)
}

func (s *Server) open(r *http.Request, body string) (string, error) {
	if s.opts.Format == config.FormatJWE {
		plaintext, kid, err := jose.Decrypt(r.Context(), s.privateKey, strings.TrimSpace(body))
		if err != nil {
			return "", err
		}
		_, _ = color.New(color.FgCyan).Fprintf(s.opts.Out, "kid: %s\n", kid)
		return string(plaintext), nil
	}

	opened, err := s.decryptor.Open(r.Context(), body)
	if err != nil {
		return "", err
	}

	if s.opts.ShowKeys {
		cyan := color.New(color.FgCyan)
		_, _ = cyan.Fprintf(s.opts.Out, "iv:  %s\n", base64.StdEncoding.EncodeToString(opened.IV))
		_, _ = cyan.Fprintf(s.opts.Out, "key: %s\n", base64.StdEncoding.EncodeToString(opened.Key))
	}

	return opened.Text, nil
}

func (s *Server) checkAuthorization(w http.ResponseWriter, r *http.Request) (int, error) {
	if s.opts.AllowedToken != "" {
		w.Header().Set("WWW-Authenticate", `Bearer realm="Echo"`)

		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 {
			return http.StatusBadRequest, fmt.Errorf("bad request: malformed Authorization header")
		}

		if parts[0] != "Bearer" || parts[1] != s.opts.AllowedToken {
			return http.StatusUnauthorized, fmt.Errorf("not authorized")
		}
	}

	return 0, nil
}

func (s *Server) writeError(w http.ResponseWriter, msg string, code int) {
	_, _ = color.New(color.FgRed).Fprintf(s.opts.Out, "-- error %d -> %s\n", code, msg)

	body, _ := json.Marshal(map[string]any{"error": msg, "code": code})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}


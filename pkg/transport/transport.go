// Package transport posts sealed envelopes to an HTTP endpoint.
//
// The encryptors never retry; PostWithRetry is the caller-side retry loop.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"k8s.io/client-go/transport"
	"k8s.io/klog/v2"

	"github.com/sealpost/sealpost/pkg/version"
)

// ContentType is the media type envelopes are posted with.
const ContentType = "text/plain;charset=UTF-8"

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received response with status code %d. Body: [%s]", e.Code, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// Poster sends envelopes to a single endpoint.
type Poster struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewPoster returns a Poster for endpoint. If token is set it is sent as a bearer token.
func NewPoster(endpoint, token string, timeout time.Duration) (*Poster, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("cannot create Poster: endpoint cannot be empty")
	}

	return &Poster{
		endpoint: endpoint,
		token:    token,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport.DebugWrappers(http.DefaultTransport),
		},
	}, nil
}

// Post sends body once. Non-2xx responses are returned as *StatusError.
func (p *Poster) Post(ctx context.Context, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", ContentType)
	version.SetUserAgent(req)

	if len(p.token) > 0 {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.token))
	}

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to %s: %w", p.endpoint, err)
	}
	defer res.Body.Close()

	if code := res.StatusCode; code < 200 || code >= 300 {
		errorContent := ""
		respBody, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err == nil {
			errorContent = string(respBody)
		}

		return &StatusError{Code: code, Body: errorContent}
	}

	klog.FromContext(ctx).WithName("transport").Info("posted envelope", "endpoint", p.endpoint, "status", res.StatusCode, "length", len(body))

	return nil
}

// PostWithRetry calls post with exponential backoff until it succeeds, returns a non-retryable status, ctx is done,
// or maxElapsed passes.
func PostWithRetry(ctx context.Context, p *Poster, body string, maxElapsed time.Duration) error {
	return retry(ctx, func() error { return p.Post(ctx, body) }, newBackOff(maxElapsed))
}

func newBackOff(maxElapsed time.Duration) *backoff.ExponentialBackOff {
	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = time.Second
	backOff.MaxInterval = 30 * time.Second
	backOff.MaxElapsedTime = maxElapsed
	return backOff
}

func retry(ctx context.Context, post func() error, b backoff.BackOff) error {
	logger := klog.FromContext(ctx).WithName("transport")

	operation := func() error {
		err := post()
		if statusErr, ok := err.(*StatusError); ok && !statusErr.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), func(err error, t time.Duration) {
		logger.Info("retrying after error", "in", t, "err", err.Error())
	})
}

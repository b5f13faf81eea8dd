package keyfetch

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"k8s.io/klog/v2"

	"github.com/sealpost/sealpost/internal/envelope"
	"github.com/sealpost/sealpost/pkg/logs"
	"github.com/sealpost/sealpost/pkg/version"
)

// DefaultCacheTTL is how long a fetched key is reused before the JWKS endpoint is queried again.
const DefaultCacheTTL = 15 * time.Minute

// KeyFetcher is an interface for fetching public keys.
type KeyFetcher interface {
	// FetchKey retrieves a public key from the key source.
	FetchKey(ctx context.Context) (PublicKey, error)
}

// Compile-time checks that Client implements KeyFetcher and envelope.KeyProvider
var (
	_ KeyFetcher           = (*Client)(nil)
	_ envelope.KeyProvider   = (*Client)(nil)
	_ envelope.KeyIDProvider = (*Client)(nil)
)

// PublicKey represents an RSA public key retrieved from the key server.
type PublicKey struct {
	// KeyID is the unique identifier for this key
	KeyID string

	// Key is the actual RSA public key
	Key *rsa.PublicKey
}

// Client fetches public keys from an HTTP endpoint that serves a JWKS document.
// It only supports RSA keys intended for RSA-OAEP-256 and ignores other types.
type Client struct {
	endpoint string
	cacheTTL time.Duration

	// httpClient is the HTTP client used for requests
	httpClient *http.Client

	cachedKey      PublicKey
	cachedKeyMutex sync.Mutex
	cachedKeyTime  time.Time
}

// NewClient creates a new key fetching client for the JWKS document at endpoint.
// If httpClient is nil, a client with a 30 second timeout is used. A cacheTTL of zero means DefaultCacheTTL.
func NewClient(endpoint string, cacheTTL time.Duration, httpClient *http.Client) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("JWKS endpoint cannot be empty")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}

	return &Client{
		endpoint:   endpoint,
		cacheTTL:   cacheTTL,
		httpClient: httpClient,
	}, nil
}

// PublicKey implements envelope.KeyProvider.
func (c *Client) PublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	key, err := c.FetchKey(ctx)
	if err != nil {
		return nil, err
	}

	return key.Key, nil
}

// PublicKeyWithID implements envelope.KeyIDProvider.
func (c *Client) PublicKeyWithID(ctx context.Context) (*rsa.PublicKey, string, error) {
	key, err := c.FetchKey(ctx)
	if err != nil {
		return nil, "", err
	}

	return key.Key, key.KeyID, nil
}

// FetchKey returns the first usable RSA key from the configured endpoint, using a cached key if one was fetched
// within the cache TTL.
func (c *Client) FetchKey(ctx context.Context) (PublicKey, error) {
	logger := klog.FromContext(ctx).WithName("keyfetch")
	c.cachedKeyMutex.Lock()
	defer c.cachedKeyMutex.Unlock()

	if !c.cachedKeyTime.IsZero() && time.Since(c.cachedKeyTime) < c.cacheTTL {
		logger.V(logs.Trace).Info("using cached key", "fetchedAt", c.cachedKeyTime.Format(time.RFC3339Nano), "kid", c.cachedKey.KeyID)
		return c.cachedKey, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return PublicKey{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	version.SetUserAgent(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PublicKey{}, fmt.Errorf("failed to fetch keys from %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return PublicKey{}, fmt.Errorf("unexpected status code %d from %s: %s", resp.StatusCode, c.endpoint, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return PublicKey{}, fmt.Errorf("failed to read response body: %w", err)
	}

	keySet, err := jwk.Parse(body)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: failed to parse JWKs response: %w", envelope.ErrKeyImport, err)
	}

	for i := range keySet.Len() {
		key, ok := keySet.Key(i)
		if !ok {
			continue
		}

		if key.KeyType().String() != "RSA" {
			continue
		}

		var rawKey any
		if err := jwk.Export(key, &rawKey); err != nil {
			// skip unparseable keys
			continue
		}

		rsaKey, ok := rawKey.(*rsa.PublicKey)
		if !ok {
			continue
		}

		if envelope.ValidatePublicKey(rsaKey) != nil {
			// skip keys that are too small to be secure
			continue
		}

		kid, ok := key.KeyID()
		if !ok {
			continue
		}

		alg, ok := key.Algorithm()
		if !ok || alg.String() != "RSA-OAEP-256" {
			continue
		}

		logger.Info("fetched valid RSA key", "kid", kid)

		c.cachedKey = PublicKey{
			KeyID: kid,
			Key:   rsaKey,
		}
		c.cachedKeyTime = time.Now()

		return c.cachedKey, nil
	}

	return PublicKey{}, fmt.Errorf("%w: no valid RSA keys found at %s", envelope.ErrKeyImport, c.endpoint)
}

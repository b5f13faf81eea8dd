package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_Defaults(t *testing.T) {
	config, err := ParseConfig([]byte(``))
	require.NoError(t, err)

	assert.Equal(t, Default(), config)
	assert.Equal(t, FormatHybrid, config.Envelope.Format)
	assert.Equal(t, "none", config.Envelope.Escaping)
	assert.Equal(t, "charcode", config.Envelope.PlaintextEncoding)
	assert.Equal(t, 30*time.Second, config.Transport.Timeout)
	assert.Equal(t, 2*time.Minute, config.Transport.MaxRetryTime)
}

func TestParseConfig_Full(t *testing.T) {
	data := `
key:
  jwks-url: https://keys.example.com/.well-known/jwks.json
  cache-ttl: 5m
envelope:
  format: jwe
  escaping: uri
  plaintext-encoding: utf8
transport:
  endpoint: http://localhost:8080/ingest
  timeout: 10s
  max-retry-time: 1m
`

	config, err := ParseConfig([]byte(data))
	require.NoError(t, err)

	want := Config{
		Key: Key{
			JWKSURL:  "https://keys.example.com/.well-known/jwks.json",
			CacheTTL: 5 * time.Minute,
		},
		Envelope: Envelope{
			Format:            FormatJWE,
			Escaping:          "uri",
			PlaintextEncoding: "utf8",
		},
		Transport: Transport{
			Endpoint:     "http://localhost:8080/ingest",
			Timeout:      10 * time.Second,
			MaxRetryTime: time.Minute,
		},
	}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Errorf("ParseConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfig_ValidationErrors(t *testing.T) {
	data := `
key:
  path: /etc/sealpost/public.pem
  jwks-url: ftp://keys.example.com
envelope:
  format: xml
  escaping: base32
  plaintext-encoding: latin1
transport:
  endpoint: localhost:8080
`

	_, err := ParseConfig([]byte(data))
	require.Error(t, err)

	expected := []string{
		"mutually exclusive",
		"key jwks-url: scheme must be http or https",
		`unknown envelope format "xml"`,
		`unknown escaping "base32"`,
		`unknown plaintext encoding "latin1"`,
		"transport endpoint:",
	}
	for _, e := range expected {
		assert.Contains(t, err.Error(), e)
	}
}

func TestParseConfig_UnknownField(t *testing.T) {
	_, err := ParseConfig([]byte("schedule: 5m\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sealpost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("envelope:\n  escaping: uri\n"), 0600))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "uri", config.Envelope.Escaping)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "failed to read config file")
}

func TestDump(t *testing.T) {
	config := Default()
	config.Transport.Endpoint = "http://localhost:8080"

	out, err := config.Dump()
	require.NoError(t, err)

	reparsed, err := ParseConfig([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, config, reparsed)
}

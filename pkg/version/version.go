package version

import (
	"fmt"
	"net/http"
	"runtime"
)

// This variables are injected at build time.

// SealpostVersion hosts the version of the app.
var SealpostVersion = "development"

// Commit is the commit hash of the build
var Commit string

// BuildDate is the date it was built
var BuildDate string

// GoVersion is the go version that was used to compile this
var GoVersion string

// UserAgent returns the User-Agent sent with every outgoing request.
func UserAgent() string {
	return fmt.Sprintf("sealpost/%s (%s/%s)", SealpostVersion, runtime.GOOS, runtime.GOARCH)
}

// SetUserAgent sets the sealpost User-Agent on req.
func SetUserAgent(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent())
}

package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// messageTimeout bounds a synchronous /v1/messages call. Zero disables it.
var messageTimeout time.Duration

// SetMessageTimeout sets the synchronous message timeout (0 disables).
func SetMessageTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	messageTimeout = d
}

// maxObservers caps concurrent /v1/events streams. Zero means unlimited.
var maxObservers = 32

// SetMaxObservers sets the event stream cap (0 disables it).
func SetMaxObservers(n int) {
	if n < 0 {
		n = 0
	}
	maxObservers = n
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

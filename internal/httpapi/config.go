package httpapi

// maxUploadBytes controls the maximum allowed request body size for the
// upload endpoint. Default is 10 MiB, matching the validator default.
var maxUploadBytes int64 = 10 << 20

// SetMaxUploadBytes configures the maximum upload request size.
func SetMaxUploadBytes(n int64) {
	if n <= 0 {
		maxUploadBytes = 10 << 20
		return
	}
	maxUploadBytes = n
}

// CORS configuration (opt-in). If no origins are set, no CORS middleware is
// added.
var corsAllowedOrigins []string

// SetCORSOrigins configures allowed CORS origins for the HTTP server.
func SetCORSOrigins(origins []string) {
	corsAllowedOrigins = append([]string(nil), origins...)
}

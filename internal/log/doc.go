// Package log provides slog-based logging that keeps secrets out of log output.
//
// SecureHandler wraps any slog.Handler and sanitizes every attribute:
//   - values under keys such as cookie, authorization or token are masked
//   - bearer, basic and JWT credentials are masked wherever they appear
//   - URLs, including those inside error messages, lose their password and
//     the values of secret query parameters
//
// Crawled URLs can carry credentials, so the crawler logs through this
// handler even in verbose mode.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Warn("download failed", "url", "https://user:pw@example.com/?token=x")
//	// url=https://user@example.com/?token=%2A%2A%2AREDACTED%2A%2A%2A
package log

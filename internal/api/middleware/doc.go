// Package middleware provides the gin middleware in front of the daemon API:
// loopback-only CORS and per-client token bucket rate limiting.
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.RateLimitFromConfig(cfg.RateLimit)))
package middleware

// Package imageproxy serves album artwork from the widget server's own
// origin. Remote images are downloaded once, cached on disk under the SHA-1
// of their URL and evicted after a period without use.
package imageproxy

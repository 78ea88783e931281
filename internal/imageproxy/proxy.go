package imageproxy

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sonoswidget/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sonoswidget/internal/logging"
)

const (
	// DefaultMaxAge is how long an untouched image stays cached.
	DefaultMaxAge = 8 * time.Hour

	cacheExt        = ".jpeg"
	downloadTimeout = 15 * time.Second
	maxImageBytes   = 10 << 20
)

var (
	// ErrMissingURL is returned when the url query parameter is absent.
	ErrMissingURL = errors.New("missing url parameter")
	// ErrUnsupportedURL is returned for anything but absolute http(s) URLs.
	ErrUnsupportedURL = errors.New("unsupported image url")
	// ErrNotCached is returned when the download did not produce a file.
	ErrNotCached = errors.New("image not available")
)

// Proxy is a disk-backed image cache.
type Proxy struct {
	dir      string
	maxAge   time.Duration
	maxBytes int64
	client   *retryablehttp.Client
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithClient replaces the download client.
func WithClient(client *retryablehttp.Client) Option {
	return func(p *Proxy) {
		p.client = client
	}
}

// WithMetrics records cache hits, misses and evictions.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(p *Proxy) {
		p.metrics = metrics
	}
}

// New creates the cache directory if needed.
func New(dir string, maxAge time.Duration, logger *logging.Logger, opts ...Option) (*Proxy, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}

	p := &Proxy{
		dir:      dir,
		maxAge:   maxAge,
		maxBytes: maxImageBytes,
		client:   newClient(),
		logger:   logger.Component("imageproxy"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func newClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = downloadTimeout
	client.Logger = nil
	return client
}

// Dir returns the cache directory.
func (p *Proxy) Dir() string { return p.dir }

// Handle serves GET /image_proxy?url=...
func (p *Proxy) Handle(c *gin.Context) {
	raw := c.Query("url")

	if _, err := p.Cleanup(c.Request.Context()); err != nil {
		p.logger.Warn("Image cache clean-up failed", zap.Error(err))
	}

	path, err := p.Fetch(c.Request.Context(), raw)
	switch {
	case errors.Is(err, ErrMissingURL), errors.Is(err, ErrUnsupportedURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		p.logger.Warn("Image unavailable", zap.String("url", raw), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": ErrNotCached.Error()})
		return
	}

	mtype, err := mimetype.DetectFile(path)
	if err == nil {
		c.Header("Content-Type", mtype.String())
	}
	c.File(path)
}

// Fetch returns the cached file for raw, downloading it first if needed.
func (p *Proxy) Fetch(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}

	path := p.CachePath(raw)
	if _, err := os.Stat(path); err == nil {
		now := p.now()
		if err := os.Chtimes(path, now, now); err != nil {
			p.logger.Debug("Failed to touch cached image", zap.Error(err))
		}
		p.metrics.RecordImageRequest("hit")
		return path, nil
	}

	if err := p.download(ctx, raw, path); err != nil {
		p.metrics.RecordImageRequest("error")
		return "", err
	}
	p.metrics.RecordImageRequest("miss")
	return path, nil
}

// CachePath is where the image for raw is stored.
func (p *Proxy) CachePath(raw string) string {
	sum := sha1.Sum([]byte(raw))
	return filepath.Join(p.dir, hex.EncodeToString(sum[:])+cacheExt)
}

// download writes the body of a 200 response to path. Other statuses leave
// nothing behind.
func (p *Proxy) download(ctx context.Context, raw, path string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotCached, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: upstream status %d", ErrNotCached, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(p.dir, "download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrNotCached, err)
	}
	if n > p.maxBytes {
		tmp.Close()
		return fmt.Errorf("%w: image larger than %d bytes", ErrNotCached, p.maxBytes)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store image: %w", err)
	}

	p.logger.Info("Cached image", zap.String("url", raw), zap.String("path", path))
	return nil
}

// Cleanup removes cached files not touched within the max age and returns how
// many were removed.
func (p *Proxy) Cleanup(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.maxAge)
	var removed atomic.Int64

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, p.dir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == p.dir {
				return nil
			}
			return filepath.SkipDir
		}

		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("Failed to evict image", zap.String("path", path), zap.Error(err))
			return nil
		}
		p.logger.Info("Images clean-up removed file", zap.String("path", path))
		removed.Add(1)
		return nil
	})

	n := int(removed.Load())
	p.metrics.AddImageEvictions(n)
	if err != nil {
		return n, fmt.Errorf("walk image cache: %w", err)
	}
	return n, nil
}

package widget

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sonoswidget/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sonoswidget/internal/logging"
)

// HTTPProvider fetches {base}/{name} as JSON.
type HTTPProvider struct {
	base    string
	client  *resty.Client
	breaker *resilience.Breaker
}

// NewHTTPProvider creates a provider rooted at base. Three consecutive
// failures open the breaker for 30 seconds.
func NewHTTPProvider(base string, logger *logging.Logger) *HTTPProvider {
	log := logger.Component("status-http")

	client := resty.New().
		SetTimeout(3*time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "sonoswidget/1.0")

	breaker := resilience.New("status-http", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &HTTPProvider{
		base:    strings.TrimRight(base, "/"),
		client:  client,
		breaker: breaker,
	}
}

// Status fetches the status of name. A 404 is reported as ErrUnknownRoom and
// does not count against the breaker.
func (p *HTTPProvider) Status(ctx context.Context, name string) (*Status, error) {
	status, err := resilience.Execute(p.breaker, func() (*Status, error) {
		var result Status
		resp, err := p.client.R().
			SetContext(ctx).
			SetResult(&result).
			Get(p.base + "/" + url.PathEscape(name))
		if err != nil {
			return nil, fmt.Errorf("fetch status: %w", err)
		}

		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return nil, nil
		case resp.IsError():
			return nil, fmt.Errorf("fetch status: unexpected status %d", resp.StatusCode())
		}
		return &result, nil
	})
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, name)
	}
	return status, nil
}

// Breaker exposes the breaker state for health reporting.
func (p *HTTPProvider) Breaker() *resilience.Breaker {
	return p.breaker
}

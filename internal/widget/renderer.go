package widget

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/sonoswidget/internal/infrastructure/monitoring"
)

//go:embed templates/widget.html
var templateFS embed.FS

// ImageProxyPath is the route artwork URLs are rewritten to.
const ImageProxyPath = "/image_proxy"

type view struct {
	Status
	ImageURL string
}

// Renderer turns a Status into the widget fragment.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded widget template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("widget.html").
		Funcs(template.FuncMap{"lower": strings.ToLower}).
		ParseFS(templateFS, "templates/widget.html")
	if err != nil {
		return nil, fmt.Errorf("parse widget template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render renders status. base is the scheme://host of the widget server and
// prefixes the proxied artwork URL.
func (r *Renderer) Render(status Status, base string) (string, error) {
	status = status.Normalize()

	v := view{Status: status}
	if status.ImageSrc != "" {
		v.ImageURL = ProxiedImageURL(base, status.ImageSrc)
	}

	var sb strings.Builder
	if err := r.tmpl.Execute(&sb, v); err != nil {
		return "", fmt.Errorf("render widget: %w", err)
	}
	return sb.String(), nil
}

// ProxiedImageURL points src back at the widget server's image proxy.
func ProxiedImageURL(base, src string) string {
	return strings.TrimRight(base, "/") + ImageProxyPath + "?url=" + url.QueryEscape(src)
}

// Service looks a room up and renders it.
type Service struct {
	provider Provider
	renderer *Renderer
	metrics  *monitoring.Metrics
}

// NewService combines a provider and a renderer.
func NewService(provider Provider, renderer *Renderer, metrics *monitoring.Metrics) *Service {
	return &Service{provider: provider, renderer: renderer, metrics: metrics}
}

// Render returns the fragment for the named room.
func (s *Service) Render(ctx context.Context, name, base string) (string, error) {
	start := time.Now()
	status, err := s.provider.Status(ctx, name)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.RecordRender("provider_error", elapsed)
		return "", err
	}

	html, err := s.renderer.Render(*status, base)
	if err != nil {
		s.metrics.RecordRender("render_error", elapsed)
		return "", err
	}

	s.metrics.RecordRender("ok", elapsed)
	return html, nil
}

package widget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/sonoswidget/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sonoswidget/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sonoswidget/internal/logging"
)

func parseFragment(t *testing.T, fragment string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	require.NoError(t, err)
	return doc
}

func TestRenderTrack(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	html, err := r.Render(Status{
		Transport: "PLAYING",
		Title:     "Song",
		Artist:    "Band",
		Album:     "Record",
		ImageSrc:  "http://192.168.1.30:1400/getaa?s=1&u=x-sonos",
	}, "https://widget.local:8080/")
	require.NoError(t, err)

	doc := parseFragment(t, html)
	assert.True(t, doc.Find("div.sonos").HasClass("playing"))
	assert.Equal(t, "Song", doc.Find("h1.title").Text())
	assert.Equal(t, "Band", doc.Find("h2.artist").Text())
	assert.Equal(t, "Record", doc.Find("h3.album").Text())

	src, ok := doc.Find("img.artwork").Attr("src")
	require.True(t, ok)
	assert.Equal(t,
		"https://widget.local:8080/image_proxy?url=http%3A%2F%2F192.168.1.30%3A1400%2Fgetaa%3Fs%3D1%26u%3Dx-sonos",
		src)
}

func TestRenderRadioFallback(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	html, err := r.Render(Status{
		Transport: "PLAYING",
		Title:     "x-sonosapi-stream:s123",
		Artist:    "stream artist",
		Channel:   "Radio Paradise",
	}, "http://widget.local")
	require.NoError(t, err)

	doc := parseFragment(t, html)
	assert.Equal(t, "Radio Paradise", doc.Find("h1.title").Text())
	assert.Equal(t, 0, doc.Find("h2.artist").Length())
	assert.Equal(t, 0, doc.Find("img").Length())
}

func TestRenderEscapesMetadata(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	html, err := r.Render(Status{Transport: "STOPPED", Title: "<script>x</script>", ImageSrc: "a"}, "")
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestNormalizeKeepsTrackWithArtwork(t *testing.T) {
	s := Status{Title: "t", Artist: "a", Album: "b", ImageSrc: "i", Channel: "c"}
	assert.Equal(t, s, s.Normalize())
}

const yamlRooms = `
rooms:
  Kitchen:
    transport: PLAYING
    title: Song
    artist: Band
    album: Record
    img_src: http://art/1.jpg
  Office:
    transport: PAUSED_PLAYBACK
    channel: Radio Paradise
`

const tomlRooms = `
[rooms.Kitchen]
transport = "PLAYING"
title = "Song"
artist = "Band"
img_src = "http://art/1.jpg"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileProvider(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml", file: "status.yaml", content: yamlRooms},
		{name: "toml", file: "status.toml", content: tomlRooms},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewFileProvider(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			status, err := p.Status(context.Background(), "Kitchen")
			require.NoError(t, err)
			assert.Equal(t, "PLAYING", status.Transport)
			assert.Equal(t, "Song", status.Title)
			assert.Equal(t, "Band", status.Artist)
			assert.Equal(t, "http://art/1.jpg", status.ImageSrc)

			_, err = p.Status(context.Background(), "Garage")
			assert.ErrorIs(t, err, ErrUnknownRoom)
		})
	}
}

func TestFileProviderRereadsFile(t *testing.T) {
	path := writeFile(t, "status.yml", yamlRooms)
	p, err := NewFileProvider(path)
	require.NoError(t, err)

	status, err := p.Status(context.Background(), "Office")
	require.NoError(t, err)
	assert.Equal(t, "Radio Paradise", status.Channel)

	require.NoError(t, os.WriteFile(path, []byte("rooms:\n  Office:\n    transport: STOPPED\n"), 0o644))

	status, err = p.Status(context.Background(), "Office")
	require.NoError(t, err)
	assert.Equal(t, "STOPPED", status.Transport)
}

func TestFileProviderErrors(t *testing.T) {
	_, err := NewFileProvider("status.json")
	assert.Error(t, err)

	p, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	_, err = p.Status(context.Background(), "Kitchen")
	assert.Error(t, err)

	broken, err := NewFileProvider(writeFile(t, "broken.toml", "[rooms.Kitchen\n"))
	require.NoError(t, err)
	_, err = broken.Status(context.Background(), "Kitchen")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Status(ctx, "Kitchen")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rooms/Living%20Room" && r.URL.Path != "/rooms/Living Room" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transport":"PLAYING","title":"Song","img_src":"http://art/2.jpg"}`))
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL+"/rooms/", logging.NewNop())

	status, err := p.Status(context.Background(), "Living Room")
	require.NoError(t, err)
	assert.Equal(t, "Song", status.Title)
	assert.Equal(t, "http://art/2.jpg", status.ImageSrc)

	_, err = p.Status(context.Background(), "Garage")
	assert.ErrorIs(t, err, ErrUnknownRoom)
	assert.Equal(t, resilience.StateClosed, p.Breaker().State())
}

func TestHTTPProviderTripsBreaker(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, logging.NewNop())

	for i := 0; i < 3; i++ {
		_, err := p.Status(context.Background(), "Kitchen")
		require.Error(t, err)
	}
	require.Equal(t, resilience.StateOpen, p.Breaker().State())

	before := hits.Load()
	_, err := p.Status(context.Background(), "Kitchen")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, hits.Load())
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Status(ctx context.Context, name string) (*Status, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Status), args.Error(1)
}

func TestServiceRender(t *testing.T) {
	provider := new(mockProvider)
	provider.On("Status", mock.Anything, "Kitchen").Return(&Status{Transport: "PLAYING", Title: "Song", ImageSrc: "a"}, nil)
	provider.On("Status", mock.Anything, "Garage").Return(nil, ErrUnknownRoom)

	renderer, err := NewRenderer()
	require.NoError(t, err)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	svc := NewService(provider, renderer, metrics)

	html, err := svc.Render(context.Background(), "Kitchen", "http://w")
	require.NoError(t, err)
	assert.Contains(t, html, "Song")

	_, err = svc.Render(context.Background(), "Garage", "http://w")
	assert.True(t, errors.Is(err, ErrUnknownRoom))

	provider.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Renders.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Renders.WithLabelValues("provider_error")))
}

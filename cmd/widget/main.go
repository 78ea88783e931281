package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sonoswidget/internal/client"
	"github.com/GriffinCanCode/sonoswidget/internal/config"
	"github.com/GriffinCanCode/sonoswidget/internal/dom"
	"github.com/GriffinCanCode/sonoswidget/internal/logging"
)

func main() {
	cfg := config.LoadOrDefault()

	origin := flag.String("origin", cfg.Client.Origin, "Origin the widget page was loaded from")
	pagePath := flag.String("page", "", "HTML page containing #widget (default: blank page)")
	out := flag.String("out", "", "Write the page here after every update")
	sanitize := flag.Bool("sanitize", false, "Sanitize fragments before patching")
	debug := flag.Bool("debug", false, "Debug logging")
	flag.Parse()

	if *debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}
	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	var opts []dom.Option
	if *sanitize {
		opts = append(opts, dom.WithUGCSanitizer())
	}

	doc, err := loadPage(*pagePath, opts...)
	if err != nil {
		logger.Fatal("Failed to load page", zap.String("path", *pagePath), zap.Error(err))
	}

	var page client.Page = doc
	if *out != "" {
		page = &writeThrough{Document: doc, path: *out, logger: logger}
	}

	session, err := client.New(*origin, page, client.WithLogger(logger))
	if err != nil {
		logger.Fatal("Invalid origin", zap.String("origin", *origin), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Run(ctx); err != nil {
		logger.Fatal("Widget session failed", zap.Error(err))
	}
}

func loadPage(path string, opts ...dom.Option) (*dom.Document, error) {
	if path == "" {
		return dom.Blank(opts...), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dom.Parse(f, opts...)
}

// writeThrough saves the page after every successful change.
type writeThrough struct {
	*dom.Document
	path   string
	logger *logging.Logger
}

func (w *writeThrough) Patch(selector, fragment string) error {
	if err := w.Document.Patch(selector, fragment); err != nil {
		return err
	}
	w.save()
	return nil
}

func (w *writeThrough) SetText(selector, text string) error {
	if err := w.Document.SetText(selector, text); err != nil {
		return err
	}
	w.save()
	return nil
}

func (w *writeThrough) save() {
	if err := os.WriteFile(w.path, []byte(w.Document.String()), 0o644); err != nil {
		w.logger.Warn("Failed to write page", zap.String("path", w.path), zap.Error(err))
	}
}

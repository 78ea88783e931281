package widget

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// statusFile is the on-disk layout:
//
//	rooms:
//	  Kitchen:
//	    transport: PLAYING
//	    title: ...
type statusFile struct {
	Rooms map[string]Status `yaml:"rooms" toml:"rooms"`
}

// FileProvider serves statuses from a YAML or TOML file. The file is read on
// every call so edits show up on the next refresh.
type FileProvider struct {
	path string
}

// NewFileProvider validates the extension and returns a provider for path.
func NewFileProvider(path string) (*FileProvider, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".toml":
		return &FileProvider{path: path}, nil
	default:
		return nil, fmt.Errorf("status file %q: unsupported extension", path)
	}
}

// Status returns the status recorded for name.
func (p *FileProvider) Status(ctx context.Context, name string) (*Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read status file: %w", err)
	}

	var file statusFile
	if strings.EqualFold(filepath.Ext(p.path), ".toml") {
		err = toml.Unmarshal(data, &file)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("parse status file %s: %w", p.path, err)
	}

	status, ok := file.Rooms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, name)
	}
	return &status, nil
}

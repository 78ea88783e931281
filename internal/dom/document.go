package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// ErrNoMatch is returned when a selector matches no element.
var ErrNoMatch = errors.New("no element matches selector")

// BlankPage is the smallest page that can host the widget.
const BlankPage = `<!DOCTYPE html><html><head><title>widget</title></head><body><div id="widget"></div></body></html>`

// Document is a mutex-guarded HTML document.
type Document struct {
	mu        sync.RWMutex
	doc       *goquery.Document
	sanitizer *bluemonday.Policy
}

// Option configures a Document.
type Option func(*Document)

// WithSanitizer runs every patched fragment through policy before parsing.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(d *Document) {
		d.sanitizer = policy
	}
}

// WithUGCSanitizer enables bluemonday's user generated content policy.
func WithUGCSanitizer() Option {
	return WithSanitizer(bluemonday.UGCPolicy())
}

// Parse reads a full HTML page.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	d := &Document{doc: doc}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ParseString reads a full HTML page from a string.
func ParseString(page string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(page), opts...)
}

// Blank returns a document containing only an empty #widget element.
func Blank(opts ...Option) *Document {
	d, err := ParseString(BlankPage, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// find resolves selector to its first match. Callers hold the lock.
func (d *Document) find(selector string) (*goquery.Selection, error) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	return sel, nil
}

// Patch replaces the children of the element matching selector with the
// parsed fragment.
func (d *Document) Patch(selector, fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel, err := d.find(selector)
	if err != nil {
		return err
	}

	if d.sanitizer != nil {
		fragment = d.sanitizer.Sanitize(fragment)
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), sel.Get(0))
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}

	sel.Empty()
	sel.AppendNodes(nodes...)
	return nil
}

// SetText replaces the children of the element matching selector with a
// single text node.
func (d *Document) SetText(selector, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel, err := d.find(selector)
	if err != nil {
		return err
	}
	sel.SetText(text)
	return nil
}

// InnerHTML returns the serialized children of the first match.
func (d *Document) InnerHTML(selector string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sel, err := d.find(selector)
	if err != nil {
		return "", err
	}
	return sel.Html()
}

// Text returns the text content of the first match.
func (d *Document) Text(selector string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sel, err := d.find(selector)
	if err != nil {
		return "", err
	}
	return sel.Text(), nil
}

// Render writes the whole document.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, n := range d.doc.Nodes {
		if err := html.Render(w, n); err != nil {
			return err
		}
	}
	return nil
}

// String renders the whole document to a string.
func (d *Document) String() string {
	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		return ""
	}
	return sb.String()
}

package paginate

import (
	"context"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/shelfscrape/extract"
)

// StaticDocument is a Document over HTML that is already fully loaded, such
// as markup supplied by the caller.
type StaticDocument struct {
	page *extract.Page
}

// NewStaticDocument parses rawHTML as the document at pageURL.
func NewStaticDocument(rawHTML, pageURL string) (*StaticDocument, error) {
	page, err := extract.NewPage(rawHTML, pageURL)
	if err != nil {
		return nil, err
	}
	return &StaticDocument{page: page}, nil
}

func (d *StaticDocument) URL() string { return d.page.String() }

// WaitForContent never blocks: static markup cannot change.
func (d *StaticDocument) WaitForContent(_ context.Context, selector string, _ time.Duration) bool {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return false
	}
	return d.page.Doc.FindMatcher(m).Length() > 0
}

func (d *StaticDocument) Snapshot(context.Context) (*extract.Page, error) {
	return d.page, nil
}

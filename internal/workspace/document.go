// ABOUTME: HTML document domain backing the code studio live preview
// ABOUTME: Falls back to the starter page until a document is saved

package workspace

import (
	"context"

	"github.com/flareos/flareforge/internal/localfirst"
	"github.com/flareos/flareforge/internal/model"
)

// DocumentStorageKey is the cache key of the raw HTML.
const DocumentStorageKey = "flareos_code"

const documentRecordKey = "document"

// Document manages the single HTML document.
type Document struct {
	store *localfirst.Store[model.Document]
	push  localfirst.PushFunc[model.Document]
}

func newDocument(w *Workspace) (*Document, error) {
	d := &Document{}
	opts := storeOptions(w, func(model.Document) string { return documentRecordKey }, "document", DocumentStorageKey)
	opts.Codec = documentCodec{}
	if w.client != nil {
		r := documentRemote{client: w.client}
		opts.Remote = r
		d.push = r.Put
	}
	store, err := localfirst.New(opts)
	if err != nil {
		return nil, err
	}
	d.store = store
	return d, nil
}

// HTML returns the saved document, or the starter page when none is saved.
func (d *Document) HTML() string {
	doc, ok := d.store.Get(documentRecordKey)
	if !ok || doc.HTML == "" {
		return model.DefaultDocumentHTML
	}
	return doc.HTML
}

// Save stores html.
func (d *Document) Save(ctx context.Context, html string) model.Document {
	return d.store.Apply(ctx, model.Document{HTML: html}, d.push)
}

// Status returns the sync status of the document.
func (d *Document) Status() localfirst.Status {
	return d.store.Status()
}

package app

import (
	"context"

	"github.com/harun/agentdiff/pkg/diffsync"
	"github.com/harun/agentdiff/pkg/livedoc"
)

// DocumentResolver exposes a livedoc.Registry to the sync manager
type DocumentResolver struct {
	registry *livedoc.Registry
}

// NewDocumentResolver creates a DocumentResolver
func NewDocumentResolver(registry *livedoc.Registry) *DocumentResolver {
	return &DocumentResolver{registry: registry}
}

// Resolve opens the live document for path
func (r *DocumentResolver) Resolve(ctx context.Context, path string) (diffsync.Document, error) {
	doc, err := r.registry.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	return document{doc: doc}, nil
}

type document struct {
	doc *livedoc.Document
}

func (d document) Text() string {
	return d.doc.Text()
}

func (d document) Subscribe(fn func(diffsync.Event)) diffsync.Subscription {
	return d.doc.Subscribe(func(e livedoc.Event) {
		fn(diffsync.Event{Path: e.Path})
	})
}

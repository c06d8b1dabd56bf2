// Package webhook ingests push notifications from the upstream request
// manager: a synchronous fast path backed by a retrying fallback queue.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pickrr/pickrr/internal/metadata"
	"github.com/pickrr/pickrr/internal/request"
)

// MetadataLookup resolves catalog ids to display metadata.
type MetadataLookup interface {
	Lookup(ctx context.Context, catalogID int64, kind request.MediaKind) (*metadata.Media, error)
}

// Ingester performs the idempotent request upsert shared by the webhook
// fast path and the queue worker.
type Ingester struct {
	store *request.Store
	meta  MetadataLookup
	log   *slog.Logger
}

// NewIngester creates an Ingester.
func NewIngester(store *request.Store, meta MetadataLookup, log *slog.Logger) *Ingester {
	return &Ingester{
		store: store,
		meta:  meta,
		log:   log.With("component", "webhook"),
	}
}

// Ingest resolves metadata and upserts the request keyed on its upstream id.
// Running it twice for the same job converges on one row; the store refuses
// to clobber locally managed statuses.
func (i *Ingester) Ingest(ctx context.Context, job Job) error {
	m, err := i.meta.Lookup(ctx, job.CatalogID, job.MediaKind)
	if err != nil {
		return fmt.Errorf("resolve metadata for %d: %w", job.CatalogID, err)
	}

	r := &request.Request{
		UpstreamID:  job.UpstreamID,
		CatalogID:   job.CatalogID,
		MediaKind:   job.MediaKind,
		Title:       m.Title,
		Year:        m.Year,
		PosterURL:   m.PosterURL,
		Overview:    stringPtr(m.Overview),
		Status:      request.StatusAwaitingSelection,
		RequestedBy: job.RequestedBy,
		RequestedAt: time.Now().UTC(),
	}
	if err := i.store.Upsert(r); err != nil {
		return fmt.Errorf("upsert request %d: %w", job.UpstreamID, err)
	}

	i.log.Info("ingested request",
		"upstream_id", job.UpstreamID,
		"title", r.Title,
		"status", r.Status)
	return nil
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

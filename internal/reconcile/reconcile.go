// Package reconcile pulls the upstream request listing and converges the
// local store on it: import new, update changed, prune vanished.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pickrr/pickrr/internal/metadata"
	"github.com/pickrr/pickrr/internal/overseerr"
	"github.com/pickrr/pickrr/internal/request"
)

const (
	maxPages = 10
	pageSize = 20
)

// Upstream lists requests from the upstream request manager.
type Upstream interface {
	Requests(ctx context.Context, page, pageSize int) (*overseerr.Page, error)
}

// Metadata resolves catalog ids to display metadata.
type Metadata interface {
	Lookup(ctx context.Context, catalogID int64, kind request.MediaKind) (*metadata.Media, error)
}

// Result reports what one reconciliation pass did.
type Result struct {
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Pruned   int      `json:"pruned"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Job is one reconciliation pass. Safe to run repeatedly and concurrently
// with webhook ingestion; both paths converge on the upstream id.
type Job struct {
	store    *request.Store
	upstream Upstream
	meta     Metadata
	log      *slog.Logger
}

// NewJob creates a reconciliation job.
func NewJob(store *request.Store, upstream Upstream, meta Metadata, log *slog.Logger) *Job {
	return &Job{
		store:    store,
		upstream: upstream,
		meta:     meta,
		log:      log.With("component", "reconcile"),
	}
}

// Run executes the three phases: collect, update/prune, import. Per-item
// failures are counted and skipped, never abort the pass.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	res := &Result{Errors: []string{}}

	remote := j.collect(ctx, res)

	index, err := j.store.Index()
	if err != nil {
		return nil, fmt.Errorf("index local requests: %w", err)
	}

	known := make(map[int64]bool, len(index))
	for _, entry := range index {
		known[entry.UpstreamID] = true
		j.updateOrPrune(entry, remote, res)
	}

	for id, ur := range remote {
		if known[id] {
			res.Skipped++
			continue
		}
		j.importOne(ctx, ur, res)
	}

	j.log.Info("reconciliation done",
		"imported", res.Imported,
		"updated", res.Updated,
		"pruned", res.Pruned,
		"skipped", res.Skipped,
		"errors", len(res.Errors))
	return res, nil
}

// collect pages through the upstream listing. A page error stops further
// collection but keeps everything fetched so far. A partial listing can't
// distinguish vanished requests from unfetched ones, so updateOrPrune
// treats a non-empty error list as "don't prune".
func (j *Job) collect(ctx context.Context, res *Result) map[int64]*overseerr.Request {
	remote := make(map[int64]*overseerr.Request)
	for page := 1; page <= maxPages; page++ {
		p, err := j.upstream.Requests(ctx, page, pageSize)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("list page %d: %v", page, err))
			break
		}
		for i := range p.Results {
			r := &p.Results[i]
			remote[r.ID] = r
		}
		if len(p.Results) == 0 || page >= p.PageInfo.Pages {
			break
		}
	}
	return remote
}

func (j *Job) updateOrPrune(entry request.IndexEntry, remote map[int64]*overseerr.Request, res *Result) {
	ur, ok := remote[entry.UpstreamID]
	if !ok {
		if len(res.Errors) > 0 {
			// Listing was partial; can't tell vanished from unfetched.
			res.Skipped++
			return
		}
		if err := j.store.Delete(entry.ID); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("prune %s: %v", entry.ID, err))
			return
		}
		j.log.Info("pruned request", "upstream_id", entry.UpstreamID)
		res.Pruned++
		return
	}

	if entry.Status.LocallyManaged() {
		return
	}
	derived := request.Derive(ur.Declined(), ur.MediaStatus())
	if derived == entry.Status {
		return
	}
	if err := j.store.SetStatus(entry.ID, derived); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("update %s: %v", entry.ID, err))
		return
	}
	j.log.Info("updated request status",
		"upstream_id", entry.UpstreamID, "from", entry.Status, "to", derived)
	res.Updated++
}

func (j *Job) importOne(ctx context.Context, ur *overseerr.Request, res *Result) {
	if err := ur.Validate(); err != nil {
		j.log.Warn("skipping upstream request", "error", err)
		res.Skipped++
		return
	}

	kind := ur.Kind()
	r := &request.Request{
		UpstreamID:  ur.ID,
		CatalogID:   ur.Media.TmdbID,
		MediaKind:   kind,
		Seasons:     ur.SeasonNumbers(),
		Status:      request.Derive(ur.Declined(), ur.MediaStatus()),
		RequestedBy: ur.Requester(),
		RequestedAt: ur.CreatedAt,
	}

	m, err := j.meta.Lookup(ctx, ur.Media.TmdbID, kind)
	if err != nil {
		// Metadata is cosmetic; import with a placeholder title rather
		// than losing the request.
		j.log.Warn("metadata lookup failed on import",
			"catalog_id", ur.Media.TmdbID, "error", err)
		r.Title = fmt.Sprintf("Request #%d", ur.ID)
	} else {
		r.Title = m.Title
		r.Year = m.Year
		r.PosterURL = m.PosterURL
		if m.Overview != "" {
			overview := m.Overview
			r.Overview = &overview
		}
	}

	if err := j.store.Upsert(r); err != nil {
		j.log.Warn("import failed", "upstream_id", ur.ID, "error", err)
		res.Skipped++
		return
	}
	j.log.Info("imported request", "upstream_id", ur.ID, "title", r.Title)
	res.Imported++
}

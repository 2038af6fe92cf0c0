// Package crawler drives the fetch→enrich→checkpoint loop over the user
// directory and aggregates run statistics.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gitscout/gitscout/internal/enrich"
	"github.com/gitscout/gitscout/internal/gh"
	"github.com/gitscout/gitscout/internal/metrics"
	"github.com/gitscout/gitscout/internal/queue"
	"github.com/gitscout/gitscout/internal/store"
)

// ErrRunActive is returned when a run is requested while another is still in
// flight. Runs are serialized; the caller should retry later.
var ErrRunActive = errors.New("a crawl run is already active")

// Stats aggregates the outcome of one run. Countries counts saved users per
// location tag ("Unknown" when none was resolved).
type Stats struct {
	TotalFetched   int            `json:"total_fetched"`
	Saved          int            `json:"saved"`
	Errors         int            `json:"errors"`
	SkippedNoEmail int            `json:"skipped_no_email"`
	Duplicates     int            `json:"duplicates"`
	Countries      map[string]int `json:"countries"`
	LastCursor     int            `json:"last_since_value"`
}

// Lister is the paginator slice the runner consumes.
type Lister interface {
	ListUsers(ctx context.Context, since int) (gh.Page, error)
	PageSize() int
}

// Enricher processes a single directory entry.
type Enricher interface {
	Enrich(ctx context.Context, login string) enrich.Result
}

// Checkpointer persists users and the crawl cursor.
type Checkpointer interface {
	Cursor(ctx context.Context) (int, error)
	SetCursor(ctx context.Context, since int) error
	InsertUserIfAbsent(ctx context.Context, u store.User) error
}

// Runner executes crawl runs. At most one run is active at a time.
type Runner struct {
	lister      Lister
	enricher    Enricher
	store       Checkpointer
	events      queue.Publisher
	concurrency int
	logger      *zap.Logger

	active atomic.Bool
}

func NewRunner(lister Lister, enricher Enricher, cp Checkpointer, events queue.Publisher, concurrency int, logger *zap.Logger) *Runner {
	if events == nil {
		events = queue.NoOpPublisher{}
	}
	if concurrency <= 0 {
		concurrency = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		lister:      lister,
		enricher:    enricher,
		store:       cp,
		events:      events,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Active reports whether a run is currently in flight.
func (r *Runner) Active() bool {
	return r.active.Load()
}

// Run crawls the directory from the last checkpoint until the listing is
// exhausted. Per-entity enrichment faults are absorbed into the statistics;
// orchestration faults still flush the last good cursor before returning the
// error. The returned Stats are meaningful in both cases.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	if !r.active.CompareAndSwap(false, true) {
		return Stats{}, ErrRunActive
	}
	defer r.active.Store(false)

	stats := Stats{Countries: make(map[string]int)}

	since, err := r.store.Cursor(ctx)
	if err != nil {
		return stats, fmt.Errorf("load checkpoint: %w", err)
	}
	stats.LastCursor = since
	r.logger.Info("crawl run starting", zap.Int("since", since))

	for {
		page, err := r.lister.ListUsers(ctx, since)
		if err != nil {
			r.checkpoint(ctx, since, &stats)
			return stats, fmt.Errorf("fetch page since=%d: %w", since, err)
		}
		if len(page.Users) == 0 {
			r.logger.Info("no more users, stopping", zap.Int("since", since))
			r.checkpoint(ctx, since, &stats)
			return stats, nil
		}

		metrics.ObservePageFetched()
		stats.TotalFetched += len(page.Users)
		r.logger.Info("processing batch",
			zap.Int("users", len(page.Users)),
			zap.Int("total_fetched", stats.TotalFetched),
		)

		r.processBatch(ctx, page.Users, &stats)

		if page.NextSince == nil {
			r.logger.Info("no next cursor, stopping", zap.Int("since", since))
			r.checkpoint(ctx, since, &stats)
			return stats, nil
		}
		if len(page.Users) < r.lister.PageSize() {
			// A short page ends the stream; the cursor stays on it so a
			// later run re-reads the tail, which dedup absorbs.
			r.logger.Info("short page, reached end of directory",
				zap.Int("page_size", len(page.Users)),
			)
			r.checkpoint(ctx, since, &stats)
			return stats, nil
		}

		since = *page.NextSince
		r.checkpoint(ctx, since, &stats)

		if err := ctx.Err(); err != nil {
			return stats, err
		}
	}
}

// processBatch enriches and persists one page of users with bounded
// concurrency. Faults are isolated per entity.
func (r *Runner) processBatch(ctx context.Context, users []gh.User, stats *Stats) {
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, user := range users {
		login := user.Login
		if login == "" {
			continue
		}
		g.Go(func() error {
			metrics.IncActiveEnrichments()
			defer metrics.DecActiveEnrichments()

			res := r.enricher.Enrich(ctx, login)
			switch res.Status {
			case enrich.StatusFailed:
				mu.Lock()
				stats.Errors++
				mu.Unlock()
				metrics.ObserveUser("error")
				r.logger.Warn("enrichment failed", zap.String("login", login), zap.Error(res.Err))
			case enrich.StatusSkippedNoEmail:
				mu.Lock()
				stats.SkippedNoEmail++
				mu.Unlock()
				metrics.ObserveUser("skipped_no_email")
			case enrich.StatusEnriched:
				r.persist(ctx, res.Record, stats, &mu)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck
}

// persist saves one enriched record and updates statistics. The stats mutex
// is taken only around counter updates, never across the insert or publish.
func (r *Runner) persist(ctx context.Context, rec enrich.Record, stats *Stats, mu *sync.Mutex) {
	err := r.store.InsertUserIfAbsent(ctx, store.User{
		GitUsername: rec.GitUsername,
		Name:        rec.Name,
		Location:    rec.Location,
		Email:       rec.Email,
		Country:     rec.Origin.Tag(),
	})
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		mu.Lock()
		stats.Duplicates++
		mu.Unlock()
		metrics.ObserveUser("duplicate")
		r.logger.Debug("duplicate user skipped", zap.String("login", rec.GitUsername))
		return
	case err != nil:
		mu.Lock()
		stats.Errors++
		mu.Unlock()
		metrics.ObserveUser("error")
		r.logger.Warn("persist failed", zap.String("login", rec.GitUsername), zap.Error(err))
		return
	}

	key := rec.Origin.Tag()
	if key == "" {
		key = "Unknown"
	}
	mu.Lock()
	stats.Saved++
	stats.Countries[key]++
	mu.Unlock()
	metrics.ObserveUser("saved")
	r.logger.Info("user saved",
		zap.String("login", rec.GitUsername),
		zap.String("country", key),
	)

	if err := r.events.Publish(ctx, queue.SavedUserEvent{
		GitUsername: rec.GitUsername,
		Name:        rec.Name,
		Email:       rec.Email,
		Country:     rec.Origin.Tag(),
		SavedAt:     time.Now().UTC(),
	}); err != nil {
		r.logger.Warn("saved-user event publish failed",
			zap.String("login", rec.GitUsername),
			zap.Error(err),
		)
	}
}

// checkpoint flushes the cursor, logging rather than failing when the write
// itself errors, and records the value in the run statistics.
func (r *Runner) checkpoint(ctx context.Context, since int, stats *Stats) {
	stats.LastCursor = since
	if err := r.store.SetCursor(ctx, since); err != nil {
		r.logger.Error("checkpoint write failed", zap.Int("since", since), zap.Error(err))
	}
}

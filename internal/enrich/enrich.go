// Package enrich turns a bare directory entry into a record ready for
// persistence: profile details, an email (from the profile or commit
// history), and a location tag (country code from the profile location, or a
// commit-derived UTC offset when the profile has none).
package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/gitscout/gitscout/internal/gh"
	"github.com/gitscout/gitscout/internal/storage"
)

// Status classifies the outcome of one enrichment attempt.
type Status string

const (
	StatusEnriched       Status = "enriched"
	StatusSkippedNoEmail Status = "skipped_no_email"
	StatusFailed         Status = "failed"
)

// OriginKind says how the location tag was derived.
type OriginKind string

const (
	OriginCountry  OriginKind = "country"
	OriginTimezone OriginKind = "timezone"
	OriginUnknown  OriginKind = "unknown"
)

// Origin is the resolved location tag: an ISO country code, a UTC offset like
// "+0330", or nothing.
type Origin struct {
	Kind  OriginKind
	Value string
}

// Tag returns the value persisted in the country column, empty for unknown.
func (o Origin) Tag() string {
	if o.Kind == OriginUnknown {
		return ""
	}
	return o.Value
}

// Record is a fully enriched user, ready for the dedup/persistence layer.
type Record struct {
	GitUsername string
	Name        string
	Location    string
	Email       string
	Origin      Origin
}

// Result is the explicit outcome of enriching one entry. Err is set only for
// StatusFailed.
type Result struct {
	Status Status
	Record Record
	Err    error
}

// Fetcher is the slice of the API client the pipeline consumes.
type Fetcher interface {
	UserDetails(ctx context.Context, login string) (gh.UserDetail, error)
	EmailFromCommits(ctx context.Context, login string) (name, email string, err error)
	TimezoneFromCommits(ctx context.Context, login string) (string, error)
}

// Locator resolves free-text locations to country codes.
type Locator interface {
	Resolve(ctx context.Context, location string) (string, error)
}

// Pipeline enriches directory entries one at a time. It is safe for
// concurrent use.
type Pipeline struct {
	fetcher Fetcher
	locator Locator
	archive storage.Provider
	logger  *zap.Logger
}

func NewPipeline(fetcher Fetcher, locator Locator, archive storage.Provider, logger *zap.Logger) *Pipeline {
	if archive == nil {
		archive = &storage.NoOpProvider{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{fetcher: fetcher, locator: locator, archive: archive, logger: logger}
}

// Enrich processes one directory entry. Every failure mode maps to a Result;
// the only thing that escapes as a plain error is context cancellation,
// which the caller handles at the batch level.
func (p *Pipeline) Enrich(ctx context.Context, login string) Result {
	detail, err := p.fetcher.UserDetails(ctx, login)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Status: StatusFailed, Err: ctx.Err()}
		}
		return Result{Status: StatusFailed, Err: fmt.Errorf("fetch details: %w", err)}
	}

	p.archiveDetail(ctx, login, detail)

	name := detail.Name
	email := detail.Email
	location := detail.Location

	if email == "" {
		p.logger.Debug("no profile email, scanning commits", zap.String("login", login))
		commitName, commitEmail, err := p.fetcher.EmailFromCommits(ctx, login)
		if err != nil {
			return Result{Status: StatusFailed, Err: fmt.Errorf("scan commits for email: %w", err)}
		}
		if commitEmail != "" {
			email = commitEmail
			if commitName != "" {
				name = commitName
			}
			p.logger.Info("email found in commits",
				zap.String("login", login),
				zap.String("email", email),
			)
		}
	}

	origin := Origin{Kind: OriginUnknown}
	if location == "" {
		tz, err := p.fetcher.TimezoneFromCommits(ctx, login)
		if err != nil {
			return Result{Status: StatusFailed, Err: fmt.Errorf("scan commits for timezone: %w", err)}
		}
		if tz != "" {
			origin = Origin{Kind: OriginTimezone, Value: tz}
		}
	} else {
		code, err := p.locator.Resolve(ctx, location)
		if err != nil {
			return Result{Status: StatusFailed, Err: fmt.Errorf("resolve location: %w", err)}
		}
		if code != "" {
			origin = Origin{Kind: OriginCountry, Value: code}
		}
	}

	if email == "" {
		p.logger.Info("no email found, skipping", zap.String("login", login))
		return Result{Status: StatusSkippedNoEmail, Record: Record{GitUsername: login}}
	}

	return Result{
		Status: StatusEnriched,
		Record: Record{
			GitUsername: login,
			Name:        name,
			Location:    location,
			Email:       email,
			Origin:      origin,
		},
	}
}

// archiveDetail stores the raw profile as JSON. Archive faults are logged and
// swallowed; losing an archive copy must not fail the enrichment.
func (p *Pipeline) archiveDetail(ctx context.Context, login string, detail gh.UserDetail) {
	data, err := json.Marshal(detail)
	if err != nil {
		return
	}
	if err := p.archive.Save(ctx, "users/"+login+".json", data); err != nil {
		p.logger.Warn("profile archive failed", zap.String("login", login), zap.Error(err))
	}
}

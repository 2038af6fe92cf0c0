package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gitscout/gitscout/internal/gh"
	"github.com/gitscout/gitscout/internal/storage/memory"
)

type fakeFetcher struct {
	detail      gh.UserDetail
	detailErr   error
	commitName  string
	commitEmail string
	emailErr    error
	timezone    string
	tzErr       error

	emailCalls int
	tzCalls    int
}

func (f *fakeFetcher) UserDetails(context.Context, string) (gh.UserDetail, error) {
	return f.detail, f.detailErr
}

func (f *fakeFetcher) EmailFromCommits(context.Context, string) (string, string, error) {
	f.emailCalls++
	return f.commitName, f.commitEmail, f.emailErr
}

func (f *fakeFetcher) TimezoneFromCommits(context.Context, string) (string, error) {
	f.tzCalls++
	return f.timezone, f.tzErr
}

type fakeLocator struct {
	code  string
	err   error
	calls int
}

func (l *fakeLocator) Resolve(context.Context, string) (string, error) {
	l.calls++
	return l.code, l.err
}

func TestEnrich_ProfileEmailAndCountry(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		detail: gh.UserDetail{Login: "alice", Name: "Alice A", Location: "Oslo, Norway", Email: "alice@example.com"},
	}
	locator := &fakeLocator{code: "NO"}
	p := NewPipeline(fetcher, locator, nil, zap.NewNop())

	res := p.Enrich(context.Background(), "alice")
	require.Equal(t, StatusEnriched, res.Status)
	assert.Equal(t, "alice@example.com", res.Record.Email)
	assert.Equal(t, Origin{Kind: OriginCountry, Value: "NO"}, res.Record.Origin)
	assert.Equal(t, "NO", res.Record.Origin.Tag())
	assert.Zero(t, fetcher.emailCalls, "profile email must not trigger commit scan")
	assert.Zero(t, fetcher.tzCalls, "present location must not trigger timezone scan")
}

func TestEnrich_EmailFallbackFromCommits(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		detail:      gh.UserDetail{Login: "bob", Name: "bob", Location: "Tehran"},
		commitName:  "Bob B",
		commitEmail: "bob@real.dev",
	}
	locator := &fakeLocator{code: "IR"}
	p := NewPipeline(fetcher, locator, nil, zap.NewNop())

	res := p.Enrich(context.Background(), "bob")
	require.Equal(t, StatusEnriched, res.Status)
	assert.Equal(t, "bob@real.dev", res.Record.Email)
	// The commit author name replaces the profile name.
	assert.Equal(t, "Bob B", res.Record.Name)
	assert.Equal(t, 1, fetcher.emailCalls)
}

func TestEnrich_TimezoneWhenLocationEmpty(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		detail:   gh.UserDetail{Login: "carol", Name: "Carol", Email: "carol@x.dev"},
		timezone: "+0330",
	}
	locator := &fakeLocator{}
	p := NewPipeline(fetcher, locator, nil, zap.NewNop())

	res := p.Enrich(context.Background(), "carol")
	require.Equal(t, StatusEnriched, res.Status)
	assert.Equal(t, Origin{Kind: OriginTimezone, Value: "+0330"}, res.Record.Origin)
	assert.Equal(t, "+0330", res.Record.Origin.Tag())
	assert.Zero(t, locator.calls, "empty location must not be geocoded")
}

func TestEnrich_SkipsWithoutEmail(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		detail: gh.UserDetail{Login: "dave", Name: "Dave", Location: "Oslo"},
	}
	locator := &fakeLocator{code: "NO"}
	p := NewPipeline(fetcher, locator, nil, zap.NewNop())

	res := p.Enrich(context.Background(), "dave")
	require.Equal(t, StatusSkippedNoEmail, res.Status)
	// Location resolution still ran before the email check, matching the
	// fetch order of the rest of the pipeline.
	assert.Equal(t, 1, locator.calls)
}

func TestEnrich_DetailFailure(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{detailErr: errors.New("boom")}
	p := NewPipeline(fetcher, &fakeLocator{}, nil, zap.NewNop())

	res := p.Enrich(context.Background(), "ghost")
	require.Equal(t, StatusFailed, res.Status)
	require.Error(t, res.Err)
}

func TestEnrich_UnresolvedLocationStillSaves(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		detail: gh.UserDetail{Login: "erin", Name: "Erin", Location: "Atlantis", Email: "erin@x.dev"},
	}
	locator := &fakeLocator{code: ""}
	p := NewPipeline(fetcher, locator, nil, zap.NewNop())

	res := p.Enrich(context.Background(), "erin")
	require.Equal(t, StatusEnriched, res.Status)
	assert.Equal(t, OriginUnknown, res.Record.Origin.Kind)
	assert.Empty(t, res.Record.Origin.Tag())
}

func TestEnrich_ArchivesRawProfile(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		detail: gh.UserDetail{Login: "alice", Name: "Alice", Email: "alice@example.com"},
	}
	archive := memory.New()
	p := NewPipeline(fetcher, &fakeLocator{}, archive, zap.NewNop())

	res := p.Enrich(context.Background(), "alice")
	require.Equal(t, StatusEnriched, res.Status)

	data, ok := archive.Get("users/alice.json")
	require.True(t, ok)
	assert.Contains(t, string(data), `"login":"alice"`)
}

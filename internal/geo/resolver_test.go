package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedProvider struct {
	calls   int
	codes   []string
	errs    []error
	inYes   bool
	inErr   error
	checked int
}

func (p *scriptedProvider) Resolve(context.Context, string) (string, error) {
	i := p.calls
	p.calls++
	var code string
	var err error
	if i < len(p.codes) {
		code = p.codes[i]
	}
	if i < len(p.errs) {
		err = p.errs[i]
	}
	return code, err
}

func (p *scriptedProvider) InRegion(context.Context, string) (bool, error) {
	p.checked++
	return p.inYes, p.inErr
}

func TestService_GazetteerShortCircuit(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{}
	s := NewWithProvider(NewGazetteer("IR"), provider, 2, zap.NewNop())

	code, err := s.Resolve(context.Background(), "Tehran, Iran")
	require.NoError(t, err)
	assert.Equal(t, "IR", code)
	assert.Zero(t, provider.calls, "gazetteer match must not reach the provider")
}

func TestService_EmptyLocation(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{}
	s := NewWithProvider(NewGazetteer("IR"), provider, 2, zap.NewNop())

	code, err := s.Resolve(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, code)
	assert.Zero(t, provider.calls)
}

func TestService_RetriesProviderFailure(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{
		codes: []string{"", "no"},
		errs:  []error{errors.New("timeout"), nil},
	}
	s := NewWithProvider(NewGazetteer("IR"), provider, 2, zap.NewNop())

	code, err := s.Resolve(context.Background(), "Oslo")
	require.NoError(t, err)
	assert.Equal(t, "NO", code)
	assert.Equal(t, 2, provider.calls)
}

func TestService_UnresolvedAfterRetryBound(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{
		errs: []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout")},
	}
	s := NewWithProvider(NewGazetteer("IR"), provider, 2, zap.NewNop())

	// Exhausted retries are an unresolved outcome, not an error.
	code, err := s.Resolve(context.Background(), "Oslo")
	require.NoError(t, err)
	assert.Empty(t, code)
	assert.Equal(t, 2, provider.calls)
}

func TestService_InRegionPrefersChecker(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{inYes: true}
	s := NewWithProvider(NewGazetteer("IR"), provider, 2, zap.NewNop())

	yes, err := s.InRegion(context.Background(), "Oslo")
	require.NoError(t, err)
	assert.True(t, yes)
	assert.Equal(t, 1, provider.checked)
	assert.Zero(t, provider.calls, "checker path must not geocode")
}

func TestService_InRegionFallsBackToCodeComparison(t *testing.T) {
	t.Parallel()

	type resolveOnly struct{ Resolver }
	provider := &scriptedProvider{codes: []string{"ir"}}
	s := NewWithProvider(NewGazetteer("IR"), resolveOnly{provider}, 2, zap.NewNop())

	yes, err := s.InRegion(context.Background(), "Oslo")
	require.NoError(t, err)
	assert.True(t, yes)
}

func TestNew_UnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Provider: "groq"}, zap.NewNop())
	require.Error(t, err)
}

func TestIsYes(t *testing.T) {
	t.Parallel()

	assert.True(t, isYes("Yes"))
	assert.True(t, isYes("  yes, they are"))
	assert.False(t, isYes("No"))
	assert.False(t, isYes(""))
}

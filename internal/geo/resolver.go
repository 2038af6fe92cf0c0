// Package geo resolves free-text location strings to ISO-3166 alpha-2 country
// codes. A static gazetteer short-circuits the configured target region;
// beyond that a configured provider is consulted: a geocoding family
// (Nominatim, OpenCage, Google Maps) or an LLM family (Claude, Gemini) that
// answers the in-region question and delegates code extraction to a geocoder.
package geo

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gitscout/gitscout/internal/metrics"
)

// Resolver maps a location string to a country code. An empty code with a nil
// error means "unresolved", which is a normal outcome, not a fault.
type Resolver interface {
	Resolve(ctx context.Context, location string) (string, error)
}

// RegionChecker answers whether a location string falls inside the configured
// target region.
type RegionChecker interface {
	InRegion(ctx context.Context, location string) (bool, error)
}

// Config selects and keys the provider. Exactly one provider is built at
// configuration time; there is no per-call dispatch.
type Config struct {
	Provider    string
	RegionCode  string
	Retries     int
	UserAgent   string
	OpenCageKey string
	GoogleKey   string

	AnthropicKey string
	ClaudeModel  string
	GeminiKey    string
	GeminiModel  string

	// BaseURL overrides for the geocoding providers, used in tests.
	NominatimBaseURL string
	OpenCageBaseURL  string
	GoogleBaseURL    string
}

// Service is the resolver handed to the enrichment pipeline: gazetteer fast
// path, then the configured provider with a bounded retry.
type Service struct {
	gaz      *Gazetteer
	provider Resolver
	checker  RegionChecker
	retries  int
	logger   *zap.Logger
}

// New builds the Service for the configured provider family.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 2
	}
	gaz := NewGazetteer(cfg.RegionCode)

	var provider Resolver
	var checker RegionChecker

	switch cfg.Provider {
	case "nominatim":
		provider = NewNominatim(cfg.NominatimBaseURL, cfg.UserAgent)
	case "opencage":
		provider = NewOpenCage(cfg.OpenCageBaseURL, cfg.OpenCageKey)
	case "google":
		provider = NewGoogleMaps(cfg.GoogleBaseURL, cfg.GoogleKey)
	case "claude":
		// LLM providers answer yes/no only; the code comes from a geocoder.
		fallback := NewNominatim(cfg.NominatimBaseURL, cfg.UserAgent)
		llm := NewClaude(cfg.AnthropicKey, cfg.ClaudeModel, regionName(cfg.RegionCode), fallback)
		provider, checker = llm, llm
	case "gemini":
		fallback := NewNominatim(cfg.NominatimBaseURL, cfg.UserAgent)
		llm, err := NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel, regionName(cfg.RegionCode), fallback)
		if err != nil {
			return nil, fmt.Errorf("init gemini provider: %w", err)
		}
		provider, checker = llm, llm
	default:
		return nil, fmt.Errorf("unknown location provider %q", cfg.Provider)
	}

	return &Service{
		gaz:      gaz,
		provider: provider,
		checker:  checker,
		retries:  cfg.Retries,
		logger:   logger,
	}, nil
}

// NewWithProvider wires a Service over an already-built provider, primarily
// for tests.
func NewWithProvider(gaz *Gazetteer, provider Resolver, retries int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries <= 0 {
		retries = 2
	}
	s := &Service{gaz: gaz, provider: provider, retries: retries, logger: logger}
	if checker, ok := provider.(RegionChecker); ok {
		s.checker = checker
	}
	return s
}

// Resolve maps location text to an uppercase country code, or "" when the
// text cannot be resolved after the retry bound.
func (s *Service) Resolve(ctx context.Context, location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", nil
	}
	if s.gaz.Match(location) {
		metrics.ObserveLocationLookup("gazetteer")
		return s.gaz.Code(), nil
	}

	for attempt := 0; attempt < s.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := s.provider.Resolve(ctx, location)
		if err != nil {
			s.logger.Warn("location provider failed",
				zap.String("location", location),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}
		if code != "" {
			metrics.ObserveLocationLookup("provider")
			return strings.ToUpper(code), nil
		}
	}
	metrics.ObserveLocationLookup("unresolved")
	return "", nil
}

// InRegion reports whether the location lies in the target region, using the
// LLM checker when configured and code comparison otherwise.
func (s *Service) InRegion(ctx context.Context, location string) (bool, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return false, nil
	}
	if s.gaz.Match(location) {
		return true, nil
	}
	if s.checker != nil {
		for attempt := 0; attempt < s.retries; attempt++ {
			yes, err := s.checker.InRegion(ctx, location)
			if err != nil {
				s.logger.Warn("region check failed",
					zap.String("location", location),
					zap.Int("attempt", attempt+1),
					zap.Error(err),
				)
				continue
			}
			return yes, nil
		}
		return false, nil
	}
	code, err := s.Resolve(ctx, location)
	if err != nil {
		return false, err
	}
	return code == s.gaz.Code(), nil
}

// regionNames maps target-region codes to the names used in LLM prompts.
var regionNames = map[string]string{
	"IR": "Iran",
	"US": "the United States",
	"NO": "Norway",
}

func regionName(code string) string {
	if name, ok := regionNames[strings.ToUpper(code)]; ok {
		return name
	}
	return strings.ToUpper(code)
}

package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const geocodeTimeout = 10 * time.Second

// getJSON performs a GET and decodes a 200 response into out. Non-200
// responses are errors here; geocoders have no useful partial answers.
func getJSON(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build geocode request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("geocode request: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode geocode response: %w", err)
	}
	return nil
}

// Nominatim resolves locations through the OpenStreetMap Nominatim search
// API. The public instance requires a User-Agent and allows at most one
// request per second, enforced here with a limiter.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

func NewNominatim(baseURL, userAgent string) *Nominatim {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	if userAgent == "" {
		userAgent = "gitscout/1.0"
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: geocodeTimeout},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (n *Nominatim) Resolve(ctx context.Context, location string) (string, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("limit", "1")

	var results []struct {
		Address struct {
			CountryCode string `json:"country_code"`
		} `json:"address"`
	}
	headers := map[string]string{"User-Agent": n.userAgent}
	if err := getJSON(ctx, n.client, n.baseURL+"/search?"+q.Encode(), headers, &results); err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}
	return strings.ToUpper(results[0].Address.CountryCode), nil
}

// OpenCage resolves locations through the OpenCage geocoding API.
type OpenCage struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewOpenCage(baseURL, apiKey string) *OpenCage {
	if baseURL == "" {
		baseURL = "https://api.opencagedata.com"
	}
	return &OpenCage{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: geocodeTimeout},
	}
}

func (o *OpenCage) Resolve(ctx context.Context, location string) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("opencage: api key not set")
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("key", o.apiKey)
	q.Set("limit", "1")

	var payload struct {
		Results []struct {
			Components struct {
				CountryCode string `json:"country_code"`
			} `json:"components"`
		} `json:"results"`
	}
	if err := getJSON(ctx, o.client, o.baseURL+"/geocode/v1/json?"+q.Encode(), nil, &payload); err != nil {
		return "", err
	}
	if len(payload.Results) == 0 {
		return "", nil
	}
	return strings.ToUpper(payload.Results[0].Components.CountryCode), nil
}

// GoogleMaps resolves locations through the Google Maps geocoding API. The
// country code is the short_name of the "country" address component.
type GoogleMaps struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewGoogleMaps(baseURL, apiKey string) *GoogleMaps {
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com"
	}
	return &GoogleMaps{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: geocodeTimeout},
	}
}

func (g *GoogleMaps) Resolve(ctx context.Context, location string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("google maps: api key not set")
	}

	q := url.Values{}
	q.Set("address", location)
	q.Set("key", g.apiKey)

	var payload struct {
		Results []struct {
			AddressComponents []struct {
				ShortName string   `json:"short_name"`
				Types     []string `json:"types"`
			} `json:"address_components"`
		} `json:"results"`
	}
	if err := getJSON(ctx, g.client, g.baseURL+"/maps/api/geocode/json?"+q.Encode(), nil, &payload); err != nil {
		return "", err
	}
	if len(payload.Results) == 0 {
		return "", nil
	}
	for _, component := range payload.Results[0].AddressComponents {
		for _, typ := range component.Types {
			if typ == "country" {
				return strings.ToUpper(component.ShortName), nil
			}
		}
	}
	return "", nil
}

package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatim_Resolve(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Oslo, Norway", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprint(w, `[{"address":{"country_code":"no"}}]`)
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL, "test-agent/1.0")
	code, err := n.Resolve(context.Background(), "Oslo, Norway")
	require.NoError(t, err)
	assert.Equal(t, "NO", code)
}

func TestNominatim_NoResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL, "")
	code, err := n.Resolve(context.Background(), "xyzzy")
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestNominatim_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL, "")
	_, err := n.Resolve(context.Background(), "Oslo")
	require.Error(t, err)
}

func TestOpenCage_Resolve(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode/v1/json", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"results":[{"components":{"country_code":"pk"}}]}`)
	}))
	defer srv.Close()

	o := NewOpenCage(srv.URL, "secret")
	code, err := o.Resolve(context.Background(), "Lahore")
	require.NoError(t, err)
	assert.Equal(t, "PK", code)
}

func TestOpenCage_RequiresKey(t *testing.T) {
	t.Parallel()

	o := NewOpenCage("http://unused", "")
	_, err := o.Resolve(context.Background(), "Lahore")
	require.Error(t, err)
}

func TestGoogleMaps_Resolve(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "Oslo", r.URL.Query().Get("address"))
		fmt.Fprint(w, `{"results":[{"address_components":[
			{"short_name":"Oslo","types":["locality"]},
			{"short_name":"NO","types":["country","political"]}
		]}]}`)
	}))
	defer srv.Close()

	g := NewGoogleMaps(srv.URL, "secret")
	code, err := g.Resolve(context.Background(), "Oslo")
	require.NoError(t, err)
	assert.Equal(t, "NO", code)
}

func TestGoogleMaps_NoCountryComponent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[{"address_components":[{"short_name":"Atlantis","types":["locality"]}]}]}`)
	}))
	defer srv.Close()

	g := NewGoogleMaps(srv.URL, "secret")
	code, err := g.Resolve(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Empty(t, code)
}

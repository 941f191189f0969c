package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCoordinates(t *testing.T) {
	tests := []struct {
		url      string
		lat, lng float64
		ok       bool
	}{
		{"https://www.google.com/maps/place/Kolkata/@22.5726,88.3639,12z", 22.5726, 88.3639, true},
		{"https://www.google.com/maps/place/data=!3d-33.8688!4d151.2093", -33.8688, 151.2093, true},
		{"https://www.google.com/maps/search/?api=1&query=45.4642,9.19", 45.4642, 9.19, true},
		{"https://www.google.com/maps/search/?api=1&query=45.4642%2C9.19", 45.4642, 9.19, true},
		{"https://maps.google.com/?q=-1.5,-2.25", -1.5, -2.25, true},
		{"https://www.google.com/maps/place/Somewhere", 0, 0, false},
		{"https://www.google.com/maps/@95.5,200.25,15z", 0, 0, false},
		{"https://www.google.com/maps/@95.5,12,15z/data=!3d41.9!4d12.49", 41.9, 12.49, true},
	}
	for _, tt := range tests {
		lat, lng, ok := ExtractCoordinates(tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
		if tt.ok {
			assert.InDelta(t, tt.lat, lat, 1e-9, tt.url)
			assert.InDelta(t, tt.lng, lng, 1e-9, tt.url)
		}
	}
}

func TestIsMapsLink(t *testing.T) {
	assert.True(t, isMapsLink("look https://maps.app.goo.gl/xyz"))
	assert.True(t, isMapsLink("https://www.google.com/maps/@1,2,3z"))
	assert.True(t, isMapsLink("https://www.google.co.in/maps/@1,2,3z"))
	assert.False(t, isMapsLink("https://example.com/maps"))
	assert.Equal(t, "https://maps.app.goo.gl/xyz", firstURL("look https://maps.app.goo.gl/xyz now"))
}

func TestHTTPResolver_FollowsRedirects(t *testing.T) {
	var final *httptest.Server
	final = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/short" {
			http.Redirect(w, r, final.URL+"/maps/@10.5,20.25,15z", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	got, err := NewHTTPResolver(time.Second).Resolve(context.Background(), final.URL+"/short")
	require.NoError(t, err)
	lat, lng, ok := ExtractCoordinates(got)
	require.True(t, ok)
	assert.InDelta(t, 10.5, lat, 1e-9)
	assert.InDelta(t, 20.25, lng, 1e-9)
}

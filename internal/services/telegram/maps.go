package telegram

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/LeonardoBeccarini/firelinx/internal/model/entities"
)

var (
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	mapsLinkPattern = regexp.MustCompile(`maps\.app\.goo\.gl|google\.[a-z.]+/maps|goo\.gl/maps`)

	// formati di Google Maps, in ordine di preferenza
	coordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`@(-?\d+(?:\.\d+)?),(-?\d+(?:\.\d+)?)`),
		regexp.MustCompile(`!3d(-?\d+(?:\.\d+)?)!4d(-?\d+(?:\.\d+)?)`),
		regexp.MustCompile(`query=(-?\d+(?:\.\d+)?)(?:,|%2C)(-?\d+(?:\.\d+)?)`),
		regexp.MustCompile(`[?&]q=(-?\d+(?:\.\d+)?)(?:,|%2C)(-?\d+(?:\.\d+)?)`),
	}
)

// LinkResolver follows short links to their final URL.
type LinkResolver interface {
	Resolve(ctx context.Context, link string) (string, error)
}

type HTTPResolver struct {
	client *http.Client
}

func NewHTTPResolver(timeout time.Duration) *HTTPResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPResolver{client: &http.Client{Timeout: timeout}}
}

func (r *HTTPResolver) Resolve(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	res, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	return res.Request.URL.String(), nil
}

// isMapsLink reports whether text carries a Google Maps link.
func isMapsLink(text string) bool {
	return mapsLinkPattern.MatchString(text)
}

func firstURL(text string) string {
	return urlPattern.FindString(text)
}

// ExtractCoordinates pulls a lat/lng pair out of a Google Maps URL.
func ExtractCoordinates(u string) (lat, lng float64, ok bool) {
	for _, re := range coordPatterns {
		m := re.FindStringSubmatch(u)
		if m == nil {
			continue
		}
		la, err1 := strconv.ParseFloat(m[1], 64)
		ln, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if !(entities.Coordinates{Lat: la, Lng: ln}).Valid() {
			continue
		}
		return la, ln, true
	}
	return 0, 0, false
}

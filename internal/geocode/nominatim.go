package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/ukydev/geolock/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultNominatimURL is the public OpenStreetMap instance.
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent identifies the application as the usage policy requires.
	DefaultUserAgent = "GeoLock"
)

// NominatimConfig configures the Nominatim adapter.
type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	Language  string
	// RequestsPerSecond caps outgoing lookups. The public instance allows 1.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Nominatim resolves coordinates with the Nominatim reverse API.
type Nominatim struct {
	cfg     NominatimConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewNominatim creates a new Nominatim resolver
func NewNominatim(cfg NominatimConfig) *Nominatim {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNominatimURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Nominatim{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Reverse implements Resolver.
func (n *Nominatim) Reverse(ctx context.Context, c models.Coordinate) (models.ResolvedAddress, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return models.ResolvedAddress{}, &ResolutionError{Kind: KindRateLimited, Coordinate: c, Err: err}
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.Longitude, 'f', -1, 64))
	q.Set("accept-language", n.cfg.Language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.cfg.BaseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return models.ResolvedAddress{}, &ResolutionError{Kind: KindNetwork, Coordinate: c, Err: err}
	}
	req.Header.Set("User-Agent", n.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return models.ResolvedAddress{}, &ResolutionError{Kind: KindNetwork, Coordinate: c, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.ResolvedAddress{}, &ResolutionError{Kind: KindRateLimited, Coordinate: c}
	case resp.StatusCode != http.StatusOK:
		return models.ResolvedAddress{}, &ResolutionError{
			Kind:       KindNetwork,
			Coordinate: c,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.ResolvedAddress{}, &ResolutionError{Kind: KindNetwork, Coordinate: c, Err: fmt.Errorf("decode: %w", err)}
	}
	if body.Error != "" || body.DisplayName == "" {
		var cause error
		if body.Error != "" {
			cause = errors.New(body.Error)
		}
		return models.ResolvedAddress{}, &ResolutionError{Kind: KindNoResult, Coordinate: c, Err: cause}
	}

	return models.ResolvedAddress{
		Address:    body.DisplayName,
		Coordinate: c,
		ResolvedAt: time.Now().UTC(),
	}, nil
}

package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/ukydev/geolock/internal/models"
)

const (
	// DefaultDiscordAPI is the Discord REST base URL.
	DefaultDiscordAPI = "https://discord.com/api/v9"

	defaultDiscordLimit = 50
	sourceDiscord       = "discord"
)

// DiscordConfig configures a DiscordFetcher.
type DiscordConfig struct {
	BaseURL   string
	Token     string
	ChannelID string
	Limit     int
	Timeout   time.Duration
}

// DiscordFetcher reads recent messages of a channel through the bot API.
type DiscordFetcher struct {
	cfg    DiscordConfig
	client *http.Client
}

// NewDiscordFetcher creates a new Discord channel fetcher
func NewDiscordFetcher(cfg DiscordConfig) (*DiscordFetcher, error) {
	if strings.TrimSpace(cfg.ChannelID) == "" {
		return nil, fmt.Errorf("discord channel id is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDiscordAPI
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Limit <= 0 || cfg.Limit > 100 {
		cfg.Limit = defaultDiscordLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &DiscordFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// discordMessage mirrors the subset of the Discord message object we read.
type discordMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Fetch implements Fetcher.
func (f *DiscordFetcher) Fetch(ctx context.Context) ([]models.Message, error) {
	endpoint := fmt.Sprintf("%s/channels/%s/messages?limit=%s",
		f.cfg.BaseURL, url.PathEscape(f.cfg.ChannelID), strconv.Itoa(f.cfg.Limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Source: sourceDiscord, Err: err}
	}
	req.Header.Set("Authorization", "Bot "+f.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: sourceDiscord, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Source: sourceDiscord, Status: resp.StatusCode}
	}

	var raw []discordMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &FetchError{Source: sourceDiscord, Err: fmt.Errorf("decode messages: %w", err)}
	}

	msgs := make([]models.Message, 0, len(raw))
	for _, m := range raw {
		msgs = append(msgs, models.Message{ID: m.ID, Content: m.Content, Timestamp: m.Timestamp})
	}
	return msgs, nil
}

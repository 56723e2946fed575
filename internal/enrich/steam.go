package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Darkatse/StatusHub/internal/config"
)

const (
	defaultStoreURL   = "https://store.steampowered.com/api/appdetails"
	defaultPlayersURL = "https://api.steampowered.com/ISteamUserStats/GetNumberOfCurrentPlayers/v1/"
)

type ClientConfig struct {
	APIKey              string
	Language            string
	DescriptionMaxChars int
	Timeout             time.Duration
}

// Client queries the Steam storefront for app details and, when an API key
// is configured, the current player count.
type Client struct {
	http *http.Client
	cfg  ClientConfig

	// Overridable in tests.
	storeURL   string
	playersURL string
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Language == "" {
		cfg.Language = config.DefaultSteamLanguage
	}
	if cfg.DescriptionMaxChars <= 0 {
		cfg.DescriptionMaxChars = config.DefaultSteamMaxChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultSteamTimeout
	}
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		storeURL:   defaultStoreURL,
		playersURL: defaultPlayersURL,
	}
}

type appDetailsEnvelope struct {
	Success bool            `json:"success"`
	Data    *appDetailsData `json:"data"`
}

type appDetailsData struct {
	Name             string `json:"name"`
	ShortDescription string `json:"short_description"`
}

type currentPlayersRoot struct {
	Response struct {
		PlayerCount *uint32 `json:"player_count"`
	} `json:"response"`
}

// FetchGameDetails satisfies FetchFunc. A missing or unlisted app returns
// (nil, nil); transport and decode problems return an error.
func (c *Client) FetchGameDetails(ctx context.Context, appID uint32) (*Metadata, error) {
	q := url.Values{}
	q.Set("appids", strconv.FormatUint(uint64(appID), 10))
	q.Set("l", c.cfg.Language)

	var envelope map[string]appDetailsEnvelope
	if err := c.getJSON(ctx, c.storeURL+"?"+q.Encode(), &envelope); err != nil {
		return nil, fmt.Errorf("steam appdetails: %w", err)
	}

	entry, ok := envelope[strconv.FormatUint(uint64(appID), 10)]
	if !ok || !entry.Success || entry.Data == nil {
		return nil, nil
	}

	meta := &Metadata{AppID: appID, Name: entry.Data.Name}
	if desc := strings.TrimSpace(entry.Data.ShortDescription); desc != "" {
		meta.ShortDescription = Truncate(desc, c.cfg.DescriptionMaxChars)
	}
	if c.cfg.APIKey != "" {
		// Player count is decoration; its failure never fails the lookup.
		if count, err := c.fetchCurrentPlayers(ctx, appID); err == nil {
			meta.CurrentPlayers = count
		}
	}
	return meta, nil
}

func (c *Client) fetchCurrentPlayers(ctx context.Context, appID uint32) (*uint32, error) {
	q := url.Values{}
	q.Set("key", c.cfg.APIKey)
	q.Set("appid", strconv.FormatUint(uint64(appID), 10))

	var root currentPlayersRoot
	if err := c.getJSON(ctx, c.playersURL+"?"+q.Encode(), &root); err != nil {
		return nil, fmt.Errorf("steam current players: %w", err)
	}
	return root.Response.PlayerCount, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "statushub/0.1")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Truncate cuts s to at most max runes, never splitting a multi-byte
// sequence.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

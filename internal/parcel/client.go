// Package parcel resolves Korean land-parcel addresses through the VWorld
// search API.
package parcel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultSearchURL = "https://api.vworld.kr/req/search"

var (
	ErrNotFound   = errors.New("no parcel found for address")
	ErrInvalidPNU = errors.New("invalid parcel number")
	ErrNoKey      = errors.New("VWorld API key is not configured")
)

// Result holds a resolved parcel.
type Result struct {
	PNU       string          `json:"pnu"`
	Address   string          `json:"address"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	RawJSON   json.RawMessage `json:"raw_json"`
}

// Client looks up parcels by address.
type Client struct {
	httpClient *http.Client
	apiKey     string

	// Overridable for testing.
	searchURL string
}

// NewClient creates a parcel client with the given VWorld key.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoKey
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		searchURL:  defaultSearchURL,
	}, nil
}

// ValidPNU reports whether s is a 19-digit parcel number.
func ValidPNU(s string) bool {
	if len(s) != 19 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

type searchResponse struct {
	Response struct {
		Status string `json:"status"`
		Error  struct {
			Code string `json:"code"`
			Text string `json:"text"`
		} `json:"error"`
		Result struct {
			Items []json.RawMessage `json:"items"`
		} `json:"result"`
	} `json:"response"`
}

type searchItem struct {
	ID      string `json:"id"`
	Address struct {
		Parcel string `json:"parcel"`
		Road   string `json:"road"`
	} `json:"address"`
	Point struct {
		X string `json:"x"`
		Y string `json:"y"`
	} `json:"point"`
}

// Lookup resolves an address to its parcel number, canonical parcel address
// and coordinates.
func (c *Client) Lookup(ctx context.Context, address string) (*Result, error) {
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}

	params := url.Values{
		"service":     {"search"},
		"request":     {"search"},
		"version":     {"2.0"},
		"crs":         {"EPSG:4326"},
		"size":        {"1"},
		"page":        {"1"},
		"query":       {address},
		"type":        {"address"},
		"category":    {"parcel"},
		"format":      {"json"},
		"errorformat": {"json"},
		"key":         {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			err = fmt.Errorf("%w (also failed to close body: %v)", err, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	switch sr.Response.Status {
	case "OK":
	case "NOT_FOUND":
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	default:
		return nil, fmt.Errorf("search failed: %s %s", sr.Response.Error.Code, sr.Response.Error.Text)
	}

	if len(sr.Response.Result.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}

	raw := sr.Response.Result.Items[0]
	var item searchItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decoding item: %w", err)
	}

	if !ValidPNU(item.ID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPNU, item.ID)
	}

	// x is longitude and y latitude in EPSG:4326.
	lng, err := strconv.ParseFloat(item.Point.X, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(item.Point.Y, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing latitude: %w", err)
	}

	addr := item.Address.Parcel
	if addr == "" {
		addr = address
	}

	return &Result{
		PNU:       item.ID,
		Address:   addr,
		Latitude:  lat,
		Longitude: lng,
		RawJSON:   raw,
	}, nil
}

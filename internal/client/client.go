// Package client provides an HTTP client for the johap REST API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/evcraddock/johap/internal/auth"
	"github.com/evcraddock/johap/internal/conflict"
	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/union"
)

// Client is an HTTP client for the johap API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// ListUnions returns every union.
func (c *Client) ListUnions() ([]*union.Union, error) {
	var unions []*union.Union
	if err := c.get("/api/system/unions", &unions); err != nil {
		return nil, err
	}
	return unions, nil
}

// CreateUnion creates a union.
func (c *Client) CreateUnion(slug, name string) (*union.Union, error) {
	body := map[string]string{"slug": slug, "name": name}
	var u union.Union
	if err := c.post("/api/system/unions", body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUnionStatus activates or deactivates a union.
func (c *Client) SetUnionStatus(slug string, status union.Status) (*union.Union, error) {
	body := map[string]string{"status": string(status)}
	var u union.Union
	if err := c.post("/api/system/unions/"+url.PathEscape(slug)+"/status", body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// IssueTokenRequest describes a guest token to issue.
type IssueTokenRequest struct {
	Union     string `json:"union"`
	Name      string `json:"name"`
	ExpiresIn string `json:"expires_in,omitempty"`
	MaxUses   *int   `json:"max_uses,omitempty"`
}

// IssuedToken is the response from POST /api/system/tokens. Token is only
// ever returned here.
type IssuedToken struct {
	Token       string            `json:"token"`
	URL         string            `json:"url"`
	AccessToken *auth.AccessToken `json:"access_token"`
}

// IssueToken issues a guest access token.
func (c *Client) IssueToken(req IssueTokenRequest) (*IssuedToken, error) {
	var resp IssuedToken
	if err := c.post("/api/system/tokens", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTokens returns guest tokens, optionally for one union.
func (c *Client) ListTokens(unionSlug string) ([]*auth.AccessToken, error) {
	path := "/api/system/tokens"
	if unionSlug != "" {
		path += "?union=" + url.QueryEscape(unionSlug)
	}
	var tokens []*auth.AccessToken
	if err := c.get(path, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// RevokeToken revokes a guest token.
func (c *Client) RevokeToken(id int64) (*auth.AccessToken, error) {
	var t auth.AccessToken
	if err := c.send("DELETE", fmt.Sprintf("/api/system/tokens/%d", id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func unionPath(slug, rest string) string {
	return "/api/unions/" + url.PathEscape(slug) + rest
}

func withStatus(path, status string) string {
	if status == "" {
		return path
	}
	return path + "?status=" + url.QueryEscape(status)
}

// ListMembers returns a union's member profiles, optionally by status.
func (c *Client) ListMembers(slug, status string) ([]*member.Profile, error) {
	var members []*member.Profile
	if err := c.get(withStatus(unionPath(slug, "/admin/members"), status), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// ListConflicts returns a union's conflicts, optionally by status.
func (c *Client) ListConflicts(slug, status string) ([]*conflict.Conflict, error) {
	var list []*conflict.Conflict
	if err := c.get(withStatus(unionPath(slug, "/admin/conflicts"), status), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ResolveConflict applies an action to a conflict.
func (c *Client) ResolveConflict(slug string, id int64, action conflict.Action, note, reason string) (*conflict.Resolution, error) {
	body := map[string]string{"action": string(action), "note": note, "reason": reason}
	var res conflict.Resolution
	if err := c.post(unionPath(slug, fmt.Sprintf("/admin/conflicts/%d/resolve", id)), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DismissConflict closes a conflict without changing holdings.
func (c *Client) DismissConflict(slug string, id int64, note string) (*conflict.Conflict, error) {
	body := map[string]string{"note": note}
	var out conflict.Conflict
	if err := c.post(unionPath(slug, fmt.Sprintf("/admin/conflicts/%d/dismiss", id)), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// get performs a GET request and decodes the JSON response.
func (c *Client) get(path string, result interface{}) error {
	return c.send("GET", path, nil, result)
}

// post performs a POST request with a JSON body.
func (c *Client) post(path string, body interface{}, result interface{}) error {
	return c.send("POST", path, body, result)
}

func (c *Client) send(method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

// do executes an HTTP request with auth header and handles errors.
func (c *Client) do(req *http.Request, result interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			fmt.Printf("warning: closing response body: %v\n", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := "server error: " + http.StatusText(resp.StatusCode)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

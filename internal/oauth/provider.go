// Package oauth implements Kakao and Naver login for union members.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/johap/internal/auth"
	"github.com/evcraddock/johap/internal/config"
)

var (
	ErrExchange = errors.New("token exchange failed")
	ErrProfile  = errors.New("profile request failed")
)

// Profile is the identity a provider reports for the logged-in user.
type Profile struct {
	ProviderUserID string
	Email          string
	Name           string
}

// Provider is one external login provider.
type Provider struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	ProfileURL   string

	parse func(body []byte) (Profile, error)
}

const (
	kakaoAuthURL    = "https://kauth.kakao.com/oauth/authorize"
	kakaoTokenURL   = "https://kauth.kakao.com/oauth/token"
	kakaoProfileURL = "https://kapi.kakao.com/v2/user/me"

	naverAuthURL    = "https://nid.naver.com/oauth2.0/authorize"
	naverTokenURL   = "https://nid.naver.com/oauth2.0/token"
	naverProfileURL = "https://openapi.naver.com/v1/nid/me"
)

// Providers returns the providers that have a client id configured.
func Providers(cfg config.Config) map[string]*Provider {
	providers := make(map[string]*Provider)
	if cfg.Kakao.Enabled() {
		providers[auth.ProviderKakao] = &Provider{
			Name:         auth.ProviderKakao,
			ClientID:     cfg.Kakao.ClientID,
			ClientSecret: cfg.Kakao.ClientSecret,
			AuthURL:      kakaoAuthURL,
			TokenURL:     kakaoTokenURL,
			ProfileURL:   kakaoProfileURL,
			parse:        parseKakao,
		}
	}
	if cfg.Naver.Enabled() {
		providers[auth.ProviderNaver] = &Provider{
			Name:         auth.ProviderNaver,
			ClientID:     cfg.Naver.ClientID,
			ClientSecret: cfg.Naver.ClientSecret,
			AuthURL:      naverAuthURL,
			TokenURL:     naverTokenURL,
			ProfileURL:   naverProfileURL,
			parse:        parseNaver,
		}
	}
	return providers
}

// AuthCodeURL builds the provider authorization redirect.
func (p *Provider) AuthCodeURL(redirectURI, state string) (string, error) {
	u, err := url.Parse(p.AuthURL)
	if err != nil {
		return "", fmt.Errorf("parsing auth url: %w", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", p.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Exchange trades an authorization code for an access token.
func (p *Provider) Exchange(ctx context.Context, client *http.Client, code, redirectURI, state string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)
	form.Set("redirect_uri", redirectURI)
	form.Set("code", code)
	form.Set("state", state)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	req.Header.Set("Accept", "application/json")

	body, err := do(client, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchange, err)
	}

	var payload struct {
		AccessToken      string `json:"access_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrExchange, err)
	}
	if payload.Error != "" {
		return "", fmt.Errorf("%w: %s %s", ErrExchange, payload.Error, payload.ErrorDescription)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: missing access token", ErrExchange)
	}
	return payload.AccessToken, nil
}

// FetchProfile loads the user's profile with an access token.
func (p *Provider) FetchProfile(ctx context.Context, client *http.Client, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ProfileURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("creating profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	body, err := do(client, req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProfile, err)
	}

	profile, err := p.parse(body)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	if profile.ProviderUserID == "" {
		return Profile{}, fmt.Errorf("%w: missing user id", ErrProfile)
	}
	return profile, nil
}

func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("closing response body", "err", cerr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

func parseKakao(body []byte) (Profile, error) {
	var payload struct {
		ID      int64 `json:"id"`
		Account struct {
			Email   string `json:"email"`
			Profile struct {
				Nickname string `json:"nickname"`
			} `json:"profile"`
		} `json:"kakao_account"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Profile{}, err
	}
	p := Profile{Email: payload.Account.Email, Name: payload.Account.Profile.Nickname}
	if payload.ID != 0 {
		p.ProviderUserID = strconv.FormatInt(payload.ID, 10)
	}
	return p, nil
}

func parseNaver(body []byte) (Profile, error) {
	var payload struct {
		ResultCode string `json:"resultcode"`
		Message    string `json:"message"`
		Response   struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Profile{}, err
	}
	if payload.ResultCode != "" && payload.ResultCode != "00" {
		return Profile{}, fmt.Errorf("naver result %s: %s", payload.ResultCode, payload.Message)
	}
	return Profile{
		ProviderUserID: payload.Response.ID,
		Email:          payload.Response.Email,
		Name:           payload.Response.Name,
	}, nil
}

// defaultClient is used for provider calls.
var defaultClient = &http.Client{Timeout: 10 * time.Second}

/*
Package jquants is a client for the J-Quants API endpoints needed to build
the market calendar: token authentication, scheduled earnings announcements
and the exchange trading calendar.
*/
package jquants

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpx-tools/jpxcal/internal/types"
)

// DefaultBaseURL is the production J-Quants API endpoint.
const DefaultBaseURL = "https://api.jquants.com"

// ID tokens are valid for 24 hours after issuance.
const idTokenTTL = 24 * time.Hour

// APIError is a non-200 response from the J-Quants API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jquants: API error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the J-Quants API on behalf of a single account.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	email    string
	password string

	refreshToken   string
	idToken        string
	tokenExpiresAt time.Time

	now func() time.Time
}

// NewClient creates a client for the given account credentials. The client
// is not usable for data calls until Authenticate succeeds.
func NewClient(email, password string) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		email:      email,
		password:   password,
		now:        time.Now,
	}
}

// Authenticate obtains a refresh token for the account and exchanges it for
// an ID token used as a bearer token on data calls.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.email == "" || c.password == "" {
		return fmt.Errorf("jquants: credentials are not configured")
	}

	creds, err := json.Marshal(map[string]string{
		"mailaddress": c.email,
		"password":    c.password,
	})
	if err != nil {
		return fmt.Errorf("jquants: failed to encode credentials: %w", err)
	}

	var authResp struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.post(ctx, "/v1/token/auth_user", bytes.NewReader(creds), &authResp); err != nil {
		return fmt.Errorf("failed to obtain refresh token: %w", err)
	}
	if authResp.RefreshToken == "" {
		return fmt.Errorf("jquants: auth response contained no refresh token")
	}
	c.refreshToken = authResp.RefreshToken

	return c.refreshIDToken(ctx)
}

func (c *Client) refreshIDToken(ctx context.Context) error {
	var resp struct {
		IDToken string `json:"idToken"`
	}
	path := "/v1/token/auth_refresh?refreshtoken=" + url.QueryEscape(c.refreshToken)
	if err := c.post(ctx, path, nil, &resp); err != nil {
		return fmt.Errorf("failed to obtain ID token: %w", err)
	}
	if resp.IDToken == "" {
		return fmt.Errorf("jquants: refresh response contained no ID token")
	}
	c.idToken = resp.IDToken
	c.tokenExpiresAt = c.now().Add(idTokenTTL)
	return nil
}

// refreshIfNeeded re-issues the ID token when it has expired, so that
// long-running processes keep working across the 24h token lifetime.
func (c *Client) refreshIfNeeded(ctx context.Context) error {
	if c.idToken == "" {
		return fmt.Errorf("jquants: client is not authenticated")
	}
	if c.now().Before(c.tokenExpiresAt) {
		return nil
	}
	log.Printf("J-Quants ID token expired, refreshing.")
	return c.refreshIDToken(ctx)
}

// announcementRecord is the wire shape of one /fins/announcement entry.
// Older payloads carried the date in AnnouncementDate instead of Date.
type announcementRecord struct {
	Code             string `json:"Code"`
	CompanyName      string `json:"CompanyName"`
	Date             string `json:"Date"`
	AnnouncementDate string `json:"AnnouncementDate"`
	FiscalYear       string `json:"FiscalYear"`
	FiscalQuarter    string `json:"FiscalQuarter"`
}

func (r announcementRecord) toAnnouncement() types.Announcement {
	date := r.Date
	if date == "" {
		date = r.AnnouncementDate
	}
	return types.Announcement{
		Code:          r.Code,
		CompanyName:   r.CompanyName,
		Date:          date,
		FiscalYear:    r.FiscalYear,
		FiscalQuarter: r.FiscalQuarter,
	}
}

// Announcements returns all scheduled earnings announcements
// (/v1/fins/announcement), following pagination until exhausted.
func (c *Client) Announcements(ctx context.Context) ([]types.Announcement, error) {
	if err := c.refreshIfNeeded(ctx); err != nil {
		return nil, err
	}

	var all []types.Announcement
	params := url.Values{}
	for {
		var page struct {
			Announcement  []announcementRecord `json:"announcement"`
			PaginationKey string               `json:"pagination_key"`
		}
		if err := c.get(ctx, "/v1/fins/announcement", params, &page); err != nil {
			return nil, err
		}
		for _, rec := range page.Announcement {
			all = append(all, rec.toAnnouncement())
		}
		if page.PaginationKey == "" {
			return all, nil
		}
		params.Set("pagination_key", page.PaginationKey)
	}
}

// TradingCalendar returns trading calendar entries between from and to,
// both YYYY-MM-DD (/v1/markets/trading_calendar). Empty bounds are omitted
// from the request.
func (c *Client) TradingCalendar(ctx context.Context, from, to string) ([]types.TradingDay, error) {
	if err := c.refreshIfNeeded(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	if from != "" {
		params.Set("from", from)
	}
	if to != "" {
		params.Set("to", to)
	}

	var all []types.TradingDay
	for {
		var page struct {
			TradingCalendar []types.TradingDay `json:"trading_calendar"`
			PaginationKey   string             `json:"pagination_key"`
		}
		if err := c.get(ctx, "/v1/markets/trading_calendar", params, &page); err != nil {
			return nil, err
		}
		all = append(all, page.TradingCalendar...)
		if page.PaginationKey == "" {
			return all, nil
		}
		params.Set("pagination_key", page.PaginationKey)
	}
}

func (c *Client) post(ctx context.Context, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.idToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: apiMessage(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiMessage extracts the "message" field the API uses in error bodies,
// falling back to the raw body.
func apiMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(data))
}

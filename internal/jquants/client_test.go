package jquants

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points a client at a fake API and runs the full token
// handshake against it.
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("user@example.com", "secret")
	client.BaseURL = server.URL
	client.HTTPClient = server.Client()

	return client, server
}

// authMux wires the two token endpoints and counts refresh calls.
func authMux(t *testing.T, refreshCalls *int) *http.ServeMux {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/token/auth_user", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			MailAddress string `json:"mailaddress"`
			Password    string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "user@example.com", creds.MailAddress)
		assert.Equal(t, "secret", creds.Password)
		fmt.Fprint(w, `{"refreshToken":"refresh-1"}`)
	})
	mux.HandleFunc("/v1/token/auth_refresh", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh-1", r.URL.Query().Get("refreshtoken"))
		if refreshCalls != nil {
			*refreshCalls++
		}
		fmt.Fprint(w, `{"idToken":"id-1"}`)
	})
	return mux
}

func TestAuthenticate(t *testing.T) {
	mux := authMux(t, nil)
	client, _ := newTestClient(t, mux)

	require.NoError(t, client.Authenticate(context.Background()))
	assert.Equal(t, "id-1", client.idToken)
	assert.True(t, client.tokenExpiresAt.After(time.Now()))
}

func TestAuthenticateWithoutCredentials(t *testing.T) {
	client := NewClient("", "")
	assert.Error(t, client.Authenticate(context.Background()))
}

func TestAnnouncementsPagination(t *testing.T) {
	mux := authMux(t, nil)
	mux.HandleFunc("/v1/fins/announcement", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer id-1", r.Header.Get("Authorization"))

		if r.URL.Query().Get("pagination_key") == "" {
			fmt.Fprint(w, `{
				"announcement": [{"Code":"1301","CompanyName":"Kyokuyo","Date":"2025-08-01","FiscalYear":"2026","FiscalQuarter":"1Q"}],
				"pagination_key": "page-2"
			}`)
			return
		}
		assert.Equal(t, "page-2", r.URL.Query().Get("pagination_key"))
		fmt.Fprint(w, `{
			"announcement": [{"Code":"7203","CompanyName":"Toyota","AnnouncementDate":"2025-11-06"}]
		}`)
	})

	client, _ := newTestClient(t, mux)
	require.NoError(t, client.Authenticate(context.Background()))

	anns, err := client.Announcements(context.Background())
	require.NoError(t, err)
	require.Len(t, anns, 2)

	assert.Equal(t, "1301", anns[0].Code)
	assert.Equal(t, "2025-08-01", anns[0].Date)
	assert.Equal(t, "1Q", anns[0].FiscalQuarter)

	// Second record carries its date in the legacy field.
	assert.Equal(t, "7203", anns[1].Code)
	assert.Equal(t, "2025-11-06", anns[1].Date)
}

func TestTradingCalendarRange(t *testing.T) {
	mux := authMux(t, nil)
	mux.HandleFunc("/v1/markets/trading_calendar", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-06-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2025-06-30", r.URL.Query().Get("to"))
		fmt.Fprint(w, `{
			"trading_calendar": [
				{"Date":"2025-06-02","HolidayDivision":"1"},
				{"Date":"2025-06-07","HolidayDivision":"0"}
			]
		}`)
	})

	client, _ := newTestClient(t, mux)
	require.NoError(t, client.Authenticate(context.Background()))

	days, err := client.TradingCalendar(context.Background(), "2025-06-01", "2025-06-30")
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.False(t, days[0].IsHoliday())
	assert.True(t, days[1].IsHoliday())
}

func TestDataCallRequiresAuthentication(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())

	_, err := client.Announcements(context.Background())
	assert.Error(t, err)
}

func TestExpiredTokenIsRefreshed(t *testing.T) {
	refreshCalls := 0
	mux := authMux(t, &refreshCalls)
	mux.HandleFunc("/v1/fins/announcement", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"announcement": []}`)
	})

	client, _ := newTestClient(t, mux)
	require.NoError(t, client.Authenticate(context.Background()))
	require.Equal(t, 1, refreshCalls)

	// Pretend 24 hours have passed since the token was issued.
	client.now = func() time.Time { return time.Now().Add(idTokenTTL + time.Minute) }

	_, err := client.Announcements(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, refreshCalls)
}

func TestAPIErrorFromMessageBody(t *testing.T) {
	mux := authMux(t, nil)
	mux.HandleFunc("/v1/markets/trading_calendar", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"The date parameter is invalid."}`)
	})

	client, _ := newTestClient(t, mux)
	require.NoError(t, client.Authenticate(context.Background()))

	_, err := client.TradingCalendar(context.Background(), "bad", "range")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "The date parameter is invalid.", apiErr.Message)
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberhub/internal/status"
)

type memoryTokens struct {
	mu      sync.Mutex
	refresh string
}

func (m *memoryTokens) RefreshToken() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refresh, nil
}

func (m *memoryTokens) SaveRefreshToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = token
	return nil
}

func TestEventsChangedSince_DecodesDelta(t *testing.T) {
	var gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/events/delta", r.URL.Path)
		gotSince = r.URL.Query().Get("since")
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"changed": []map[string]any{{
				"id":            "216",
				"title":         "Onam 2025",
				"ticketsOpen":   "1",
				"lastUpdatedAt": "2025-05-20T10:00:00Z",
			}},
			"deleted": []string{"12"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &memoryTokens{refresh: "rt"})
	c.setAccessToken("tok")

	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	delta, err := c.EventsChangedSince(context.Background(), &since)
	require.NoError(t, err)

	assert.Equal(t, "2025-05-01T00:00:00Z", gotSince)
	require.Len(t, delta.Changed, 1)
	assert.Equal(t, "216", delta.Changed[0].ID)
	assert.True(t, delta.Changed[0].TicketsOpen.Or(false), "string \"1\" decodes true")
	assert.Equal(t, []string{"12"}, delta.DeletedIDs)
	assert.Equal(t, time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC), delta.MaxUpdatedAt())
}

func TestDo_RefreshesOnceOn401(t *testing.T) {
	var calls, refreshes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/refresh" {
			refreshes++
			json.NewEncoder(w).Encode(map[string]string{
				"accessToken":  "fresh",
				"refreshToken": "rt-2",
			})
			return
		}
		calls++
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"changed": []any{}, "deleted": []any{}})
	}))
	defer srv.Close()

	tokens := &memoryTokens{refresh: "rt-1"}
	c := NewClient(srv.URL, tokens)
	c.setAccessToken("stale")

	_, err := c.EventsChangedSince(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "one failed call, one retry")
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, "rt-2", tokens.refresh, "rotated refresh token persisted")
}

func TestDo_SecondUnauthorizedSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/refresh" {
			json.NewEncoder(w).Encode(map[string]string{"accessToken": "still-bad"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &memoryTokens{refresh: "rt"})
	_, err := c.EventsChangedSince(context.Background(), nil)
	assert.ErrorIs(t, err, status.ErrUnauthorized)
}

func TestDo_ServerAndDecodeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/profile":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		case "/api/v1/purchases":
			w.Write([]byte("{not json"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &memoryTokens{})
	c.setAccessToken("tok")

	_, err := c.Profile(context.Background())
	assert.ErrorIs(t, err, status.ErrServer)

	_, err = c.Purchases(context.Background())
	assert.ErrorIs(t, err, status.ErrDecode)
}

func TestPurchases_MissingRequiredField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tickets": []map[string]any{{"id": "", "status": "paid"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &memoryTokens{})
	c.setAccessToken("tok")

	_, err := c.Purchases(context.Background())
	assert.ErrorIs(t, err, status.ErrMissingPurchaseField)
}

func TestPurchases_LegacyRecordWithoutEventID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tickets": []map[string]any{{
				"id": "p-9", "status": "paid", "eventName": "Onam 2025",
				"quantity": 2, "amount": "40.00", "createdAt": "2025-05-01T09:00:00Z",
			}},
			"registrations": []map[string]any{{
				"id": "r-1", "status": "waitlisted", "eventId": "300", "eventName": "AGM",
			}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &memoryTokens{})
	c.setAccessToken("tok")

	records, err := c.Purchases(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Empty(t, records[0].EventID, "legacy record keeps empty event id for name fallback")
	assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(40)))
	assert.True(t, records[1].Waitlisted())
}

package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/L4Nci/verejne-zakazky/internal/config"
	"github.com/L4Nci/verejne-zakazky/internal/domain"
	"github.com/L4Nci/verejne-zakazky/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func fixture() []domain.Tender {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	out := make([]domain.Tender, 0, 30)
	for i := 0; i < 30; i++ {
		status := "open"
		if i%5 == 0 {
			status = "awarded"
		}
		out = append(out, domain.Tender{
			SourceID:   "nen",
			ExternalID: fmt.Sprintf("N%03d", i),
			Title:      fmt.Sprintf("Oprava silnice %d", i),
			Country:    "CZ",
			Status:     status,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
			UpdatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
	}
	return out
}

func newTestServer(t *testing.T, tenders ...domain.Tender) (*Server, *Hub) {
	t.Helper()
	cfg := &config.Config{Port: 8080, PageSize: 20}
	svc := domain.NewQueryService(store.NewMemorySource(tenders...), testLogger(), cfg.PageSize)
	hub := NewHub(testLogger())
	t.Cleanup(hub.Close)
	return NewServer(cfg, svc, hub, testLogger()), hub
}

func doJSON(t *testing.T, h http.Handler, target string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListTendersFirstPage(t *testing.T) {
	s, _ := newTestServer(t, fixture()...)

	var resp struct {
		Data       []domain.Tender `json:"data"`
		NextCursor string          `json:"nextCursor"`
		HasMore    bool            `json:"hasMore"`
		Total      *int            `json:"total"`
	}
	rec := doJSON(t, s.Handler(), "/api/v1/tenders?count=true", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Data, 20)
	require.True(t, resp.HasMore)
	require.NotEmpty(t, resp.NextCursor)
	require.NotNil(t, resp.Total)
	require.Equal(t, 30, *resp.Total)

	// Newest first is the default ordering.
	require.Equal(t, "N029", resp.Data[0].ExternalID)

	// The second page continues where the cursor points and knows no total.
	var next struct {
		Data    []domain.Tender `json:"data"`
		HasMore bool            `json:"hasMore"`
		Total   *int            `json:"total"`
	}
	rec = doJSON(t, s.Handler(), "/api/v1/tenders?cursor="+resp.NextCursor, &next)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, next.Data, 10)
	require.Equal(t, "N009", next.Data[0].ExternalID)
	require.Nil(t, next.Total)
}

func TestListTendersFiltersAndSort(t *testing.T) {
	s, _ := newTestServer(t, fixture()...)

	var resp struct {
		Data []domain.Tender `json:"data"`
	}
	rec := doJSON(t, s.Handler(), "/api/v1/tenders?status=awarded&sort=oldest&limit=100", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Data, 6)
	require.Equal(t, "N000", resp.Data[0].ExternalID)
	for _, tn := range resp.Data {
		require.Equal(t, "awarded", tn.Status)
	}
}

func TestListTendersEmptyResult(t *testing.T) {
	s, _ := newTestServer(t, fixture()...)

	rec := doJSON(t, s.Handler(), "/api/v1/tenders?q=neexistuje", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"data":[]`)
	require.Contains(t, rec.Body.String(), `"hasMore":false`)
}

func TestListTendersBadRequests(t *testing.T) {
	s, _ := newTestServer(t, fixture()...)

	cases := map[string]string{
		"/api/v1/tenders?bmin=abc":       "InvalidRequest",
		"/api/v1/tenders?dfrom=pozítří":  "InvalidRequest",
		"/api/v1/tenders?limit=0":        "InvalidRequest",
		"/api/v1/tenders?limit=500":      "InvalidRequest",
		"/api/v1/tenders?cursor=garbage": "InvalidCursor",
	}
	for target, wantErr := range cases {
		rec := doJSON(t, s.Handler(), target, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		require.Contains(t, rec.Body.String(), wantErr, target)
	}
}

func TestGetTenderByExternalID(t *testing.T) {
	s, _ := newTestServer(t, fixture()...)

	var tn domain.Tender
	rec := doJSON(t, s.Handler(), "/api/v1/tenders/N007", &tn)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Oprava silnice 7", tn.Title)

	rec = doJSON(t, s.Handler(), "/api/v1/tenders/N999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NotFound")
}

func TestWatchBroadcast(t *testing.T) {
	s, hub := newTestServer(t, fixture()...)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/tenders/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.Broadcast(UpdateEvent{Type: "tenders_updated", Source: "nen", Inserted: 3, Updated: 1})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event UpdateEvent
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "tenders_updated", event.Type)
	require.Equal(t, "nen", event.Source)
	require.Equal(t, 3, event.Inserted)
	require.False(t, event.OccurredAt.IsZero())
}

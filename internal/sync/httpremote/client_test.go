package httpremote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
	"github.com/MarcoPoloResearchLab/gradebook/internal/sync"
)

type fakeServer struct {
	mux         *http.ServeMux
	tokenCalls  atomic.Int64
	fetchCalls  atomic.Int64
	storedDoc   atomic.Value
	rejectToken atomic.Bool
	rejectFetch atomic.Bool
	events      chan string
}

func newFakeServer() *fakeServer {
	f := &fakeServer{
		mux:    http.NewServeMux(),
		events: make(chan string, 4),
	}
	f.mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if f.rejectToken.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
			"token_type":   "Bearer",
		})
	})
	f.mux.HandleFunc("/v1/document", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" || f.rejectFetch.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			f.fetchCalls.Add(1)
			stored, _ := f.storedDoc.Load().(string)
			if stored == "" {
				fmt.Fprint(w, `{"document":null,"updated_at_ms":0}`)
				return
			}
			fmt.Fprintf(w, `{"document":%s,"updated_at_ms":777}`, stored)
		case http.MethodPut:
			var body struct {
				Document json.RawMessage `json:"document"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.storedDoc.Store(string(body.Document))
			fmt.Fprint(w, `{"accepted":true,"updated_at_ms":777}`)
		}
	})
	f.mux.HandleFunc("/v1/events", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case event := <-f.events:
				fmt.Fprintf(w, "event: document-change\ndata: %s\n\n", event)
				w.(http.Flusher).Flush()
			}
		}
	})
	return f
}

func mustClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{BaseURL: url, AccountID: "family-1"})
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}
	return client
}

func TestFetchReturnsNilWithoutDocument(t *testing.T) {
	fake := newFakeServer()
	server := httptest.NewServer(fake.mux)
	t.Cleanup(server.Close)
	client := mustClient(t, server.URL)

	doc, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil document, got %+v", doc)
	}
}

func TestUpsertThenFetchRoundTrips(t *testing.T) {
	fake := newFakeServer()
	server := httptest.NewServer(fake.mux)
	t.Cleanup(server.Close)
	client := mustClient(t, server.URL)
	ctx := context.Background()

	pushed := &document.Document{SchoolName: "Home", UpdatedAt: 1234}
	if err := client.Upsert(ctx, pushed); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}

	doc, err := client.Fetch(ctx)
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if doc == nil || doc.SchoolName != "Home" || doc.UpdatedAt != 1234 {
		t.Fatalf("document did not round trip: %+v", doc)
	}
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	fake := newFakeServer()
	server := httptest.NewServer(fake.mux)
	t.Cleanup(server.Close)
	client := mustClient(t, server.URL)
	ctx := context.Background()

	if _, err := client.Fetch(ctx); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if _, err := client.Fetch(ctx); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if calls := fake.tokenCalls.Load(); calls != 1 {
		t.Fatalf("expected a single token request, got %d", calls)
	}
}

func TestRejectedCredentialsSurfaceAsUnauthenticated(t *testing.T) {
	fake := newFakeServer()
	fake.rejectToken.Store(true)
	server := httptest.NewServer(fake.mux)
	t.Cleanup(server.Close)
	client := mustClient(t, server.URL)

	_, err := client.Fetch(context.Background())
	if !errors.Is(err, sync.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRejectedFetchInvalidatesCachedToken(t *testing.T) {
	fake := newFakeServer()
	server := httptest.NewServer(fake.mux)
	t.Cleanup(server.Close)
	client := mustClient(t, server.URL)
	ctx := context.Background()

	if _, err := client.Fetch(ctx); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	fake.rejectFetch.Store(true)
	if _, err := client.Fetch(ctx); !errors.Is(err, sync.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	fake.rejectFetch.Store(false)
	if _, err := client.Fetch(ctx); err != nil {
		t.Fatalf("expected recovery after re-authentication: %v", err)
	}
	if calls := fake.tokenCalls.Load(); calls != 2 {
		t.Fatalf("expected re-authentication after rejection, got %d token calls", calls)
	}
}

func TestSubscribeDeliversDocumentsAfterChangeEvents(t *testing.T) {
	fake := newFakeServer()
	server := httptest.NewServer(fake.mux)
	t.Cleanup(server.Close)
	client := mustClient(t, server.URL)
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	fake.storedDoc.Store(`{"schoolName":"Pushed","_updatedAt":900}`)

	received := make(chan *document.Document, 1)
	cancel, err := client.Subscribe(ctx, func(doc *document.Document) {
		received <- doc
	})
	if err != nil {
		t.Fatalf("unexpected subscribe error: %v", err)
	}
	defer cancel()

	fake.events <- `{"updatedAtMs":900,"source":"gradebook-syncd"}`

	select {
	case doc := <-received:
		if doc.SchoolName != "Pushed" || doc.UpdatedAt != 900 {
			t.Fatalf("unexpected document from subscription: %+v", doc)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for subscribed document")
	}

	cancel()
	cancel()
}

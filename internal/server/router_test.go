package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/gradebook/internal/auth"
	"github.com/MarcoPoloResearchLab/gradebook/internal/store"
)

type serverIDProvider struct {
	next int
}

func (p *serverIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("srv-id-%d", p.next), nil
}

func mustHandler(t *testing.T) (http.Handler, *auth.TokenIssuer) {
	t.Helper()
	dsn := fmt.Sprintf("file:syncd_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&store.DocumentRecord{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	documents, err := store.NewDocumentStore(store.DocumentStoreConfig{
		Database:   db,
		IDProvider: &serverIDProvider{},
	})
	if err != nil {
		t.Fatalf("failed to build document store: %v", err)
	}
	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "gradebook-syncd",
		Audience:      "gradebook",
		TokenTTL:      time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to build token issuer: %v", err)
	}
	handler, err := NewHTTPHandler(Dependencies{
		TokenManager: tokenIssuer,
		Documents:    documents,
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	return handler, tokenIssuer
}

func mustToken(t *testing.T, issuer *auth.TokenIssuer, accountID string) string {
	t.Helper()
	token, _, err := issuer.IssueToken(context.Background(), accountID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestIssueTokenEndpoint(t *testing.T) {
	handler, _ := mustHandler(t)

	recorder := doJSON(t, handler, http.MethodPost, "/auth/token", "", `{"account_id":"family-1"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}

	var response tokenResponsePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.AccessToken == "" || response.TokenType != "Bearer" || response.ExpiresIn <= 0 {
		t.Fatalf("unexpected token response: %+v", response)
	}
}

func TestIssueTokenRejectsBlankAccount(t *testing.T) {
	handler, _ := mustHandler(t)
	recorder := doJSON(t, handler, http.MethodPost, "/auth/token", "", `{"account_id":"  "}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestDocumentEndpointsRequireAuthorization(t *testing.T) {
	handler, _ := mustHandler(t)
	recorder := doJSON(t, handler, http.MethodGet, "/v1/document", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", recorder.Code)
	}
}

func TestPushThenFetchRoundTrips(t *testing.T) {
	handler, issuer := mustHandler(t)
	token := mustToken(t, issuer, "family-1")

	doc := `{"students":[{"id":"s1","name":"Ada"}],"subjects":[],"assignments":[],"terms":[],"years":[],"schoolName":"Home","_updatedAt":1000}`
	pushRecorder := doJSON(t, handler, http.MethodPut, "/v1/document", token, `{"document":`+doc+`}`)
	if pushRecorder.Code != http.StatusOK {
		t.Fatalf("unexpected push status %d: %s", pushRecorder.Code, pushRecorder.Body.String())
	}
	var pushResponse pushResponsePayload
	if err := json.Unmarshal(pushRecorder.Body.Bytes(), &pushResponse); err != nil {
		t.Fatalf("failed to decode push response: %v", err)
	}
	if !pushResponse.Accepted || pushResponse.UpdatedAtMs != 1000 {
		t.Fatalf("unexpected push response: %+v", pushResponse)
	}

	fetchRecorder := doJSON(t, handler, http.MethodGet, "/v1/document", token, "")
	if fetchRecorder.Code != http.StatusOK {
		t.Fatalf("unexpected fetch status %d", fetchRecorder.Code)
	}
	var fetchResponse documentResponsePayload
	if err := json.Unmarshal(fetchRecorder.Body.Bytes(), &fetchResponse); err != nil {
		t.Fatalf("failed to decode fetch response: %v", err)
	}
	if fetchResponse.UpdatedAtMs != 1000 {
		t.Fatalf("unexpected timestamp %d", fetchResponse.UpdatedAtMs)
	}
	var fetched struct {
		SchoolName string `json:"schoolName"`
	}
	if err := json.Unmarshal(fetchResponse.Document, &fetched); err != nil {
		t.Fatalf("failed to decode stored document: %v", err)
	}
	if fetched.SchoolName != "Home" {
		t.Fatalf("document did not round trip: %q", fetched.SchoolName)
	}
}

func TestFetchWithoutDocumentReturnsNull(t *testing.T) {
	handler, issuer := mustHandler(t)
	token := mustToken(t, issuer, "family-9")

	recorder := doJSON(t, handler, http.MethodGet, "/v1/document", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	var response documentResponsePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Document) != 0 && string(response.Document) != "null" {
		t.Fatalf("expected no document, got %s", response.Document)
	}
}

func TestPushRejectsStaleDocument(t *testing.T) {
	handler, issuer := mustHandler(t)
	token := mustToken(t, issuer, "family-1")

	newer := `{"schoolName":"Newer","_updatedAt":2000}`
	if recorder := doJSON(t, handler, http.MethodPut, "/v1/document", token, `{"document":`+newer+`}`); recorder.Code != http.StatusOK {
		t.Fatalf("unexpected push status %d", recorder.Code)
	}

	stale := `{"schoolName":"Stale","_updatedAt":1500}`
	recorder := doJSON(t, handler, http.MethodPut, "/v1/document", token, `{"document":`+stale+`}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected push status %d", recorder.Code)
	}
	var response pushResponsePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Accepted {
		t.Fatalf("stale push must be rejected")
	}
	if response.UpdatedAtMs != 2000 {
		t.Fatalf("rejection must report the stored stamp, got %d", response.UpdatedAtMs)
	}

	fetchRecorder := doJSON(t, handler, http.MethodGet, "/v1/document", token, "")
	var fetchResponse documentResponsePayload
	if err := json.Unmarshal(fetchRecorder.Body.Bytes(), &fetchResponse); err != nil {
		t.Fatalf("failed to decode fetch response: %v", err)
	}
	var fetched struct {
		SchoolName string `json:"schoolName"`
	}
	if err := json.Unmarshal(fetchResponse.Document, &fetched); err != nil {
		t.Fatalf("failed to decode stored document: %v", err)
	}
	if fetched.SchoolName != "Newer" {
		t.Fatalf("stored document must be the newer one, got %q", fetched.SchoolName)
	}
}

func TestAccountsAreIsolated(t *testing.T) {
	handler, issuer := mustHandler(t)
	tokenA := mustToken(t, issuer, "family-a")
	tokenB := mustToken(t, issuer, "family-b")

	doc := `{"schoolName":"A","_updatedAt":100}`
	if recorder := doJSON(t, handler, http.MethodPut, "/v1/document", tokenA, `{"document":`+doc+`}`); recorder.Code != http.StatusOK {
		t.Fatalf("unexpected push status %d", recorder.Code)
	}

	recorder := doJSON(t, handler, http.MethodGet, "/v1/document", tokenB, "")
	var response documentResponsePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Document) != 0 && string(response.Document) != "null" {
		t.Fatalf("family-b must not see family-a's document: %s", response.Document)
	}
}

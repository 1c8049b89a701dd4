package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEventsStreamEmitsDocumentChange(t *testing.T) {
	handler, issuer := mustHandler(t)
	token := mustToken(t, issuer, "family-1")

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	streamRequest, err := http.NewRequest(http.MethodGet, server.URL+"/v1/events?access_token="+token, http.NoBody)
	if err != nil {
		t.Fatalf("failed to construct stream request: %v", err)
	}
	streamResp, err := http.DefaultClient.Do(streamRequest)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResp.Body.Close()
	})
	if streamResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResp.StatusCode)
	}

	streamReader := bufio.NewReader(streamResp.Body)

	payload := `{"document":{"students":[],"subjects":[],"assignments":[],"terms":[],"years":[],"schoolName":"Home","_updatedAt":1700000000123}}`
	pushReq, err := http.NewRequest(http.MethodPut, server.URL+"/v1/document", bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("failed to construct push request: %v", err)
	}
	pushReq.Header.Set("Authorization", "Bearer "+token)
	pushReq.Header.Set("Content-Type", "application/json")
	pushResp, err := http.DefaultClient.Do(pushReq)
	if err != nil {
		t.Fatalf("push request failed: %v", err)
	}
	defer pushResp.Body.Close()
	if pushResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected push status: %d", pushResp.StatusCode)
	}

	currentEventType := ""
	deadline := time.After(5 * time.Second)
	type readResult struct {
		line string
		err  error
	}
	for {
		resultCh := make(chan readResult, 1)
		go func() {
			line, err := streamReader.ReadString('\n')
			resultCh <- readResult{line: line, err: err}
		}()
		select {
		case <-deadline:
			t.Fatal("timed out waiting for realtime event")
		case res := <-resultCh:
			if res.err != nil {
				t.Fatalf("failed to read stream: %v", res.err)
			}
			line := strings.TrimSpace(res.line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			if currentEventType != RealtimeEventDocumentChanged {
				continue
			}
			dataJSON := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var event realtimeEventPayload
			if err := json.Unmarshal([]byte(dataJSON), &event); err != nil {
				t.Fatalf("failed to decode event payload: %v", err)
			}
			if event.UpdatedAtMs != 1700000000123 {
				t.Fatalf("unexpected event timestamp: %d", event.UpdatedAtMs)
			}
			if event.Source != realtimeSourceBackend {
				t.Fatalf("unexpected event source: %q", event.Source)
			}
			return
		}
	}
}

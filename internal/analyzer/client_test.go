package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_Analyze(t *testing.T) {
	t.Parallel()

	var gotTranscript string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/analyze-opportunities" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Transcript string `json:"transcript"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotTranscript = body.Transcript
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(twoCards))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL + "/")
	cards := c.Analyze(context.Background(), "what if cities could float")
	if len(cards) != 2 {
		t.Fatalf("cards = %d, want 2", len(cards))
	}
	if gotTranscript != "what if cities could float" {
		t.Errorf("server saw transcript %q", gotTranscript)
	}
}

func TestClient_Degrades(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", http.StatusInternalServerError)
			},
		},
		{
			name: "bad body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"opportunities":[{"id":"1"}]}`))
			},
		},
		{
			name: "slow",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tc.handler)
			t.Cleanup(srv.Close)

			c := NewClient(srv.URL, WithClientTimeout(50*time.Millisecond))
			if cards := c.Analyze(context.Background(), "I wonder why"); len(cards) != 0 {
				t.Errorf("cards = %v, want none", cards)
			}
		})
	}
}

func TestClient_UnreachableServer(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if cards := NewClient(url).Analyze(context.Background(), "hello"); len(cards) != 0 {
		t.Errorf("cards = %v, want none", cards)
	}
}

func TestClient_BlankSkipsRequest(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	NewClient(srv.URL).Analyze(context.Background(), "  ")
	if hits.Load() != 0 {
		t.Error("blank transcript reached the server")
	}
}

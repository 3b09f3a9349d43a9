package summary

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tinyland-inc/relaybot/pkg/config"
)

func newTestServer(t *testing.T, reply string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if gotBody != nil {
			json.NewDecoder(r.Body).Decode(gotBody)
		}
		resp := map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-3-5-haiku-latest",
			"stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": reply},
			},
			"usage": map[string]any{
				"input_tokens":  12,
				"output_tokens": 6,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestSummarizeRoundTrip(t *testing.T) {
	var body map[string]any
	server := newTestServer(t, "Customer cannot track their order.", &body)
	defer server.Close()

	c := New(config.SummarizerConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	got, err := c.Summarize(t.Context(), []string{
		"hello?",
		"my order 4417 never arrived",
		"the tracking page is blank",
	})
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if got != "Customer cannot track their order." {
		t.Errorf("Summarize() = %q", got)
	}

	// The transcript lines travel as a single joined user message.
	msgs, ok := body["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("request messages = %v, want exactly one", body["messages"])
	}
	raw, _ := json.Marshal(msgs[0])
	if !strings.Contains(string(raw), "order 4417") {
		t.Errorf("user message missing transcript content: %s", raw)
	}
	if body["model"] != "claude-3-5-haiku-latest" {
		t.Errorf("model = %v, want default", body["model"])
	}
}

func TestSummarizeModelOverride(t *testing.T) {
	var body map[string]any
	server := newTestServer(t, "ok", &body)
	defer server.Close()

	c := New(config.SummarizerConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "claude-sonnet-4.6",
	})
	if _, err := c.Summarize(t.Context(), []string{"hi"}); err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if body["model"] != "claude-sonnet-4.6" {
		t.Errorf("model = %v, want override", body["model"])
	}
}

func TestSummarizeEmptyTranscript(t *testing.T) {
	c := New(config.SummarizerConfig{APIKey: "test-key"})
	got, err := c.Summarize(t.Context(), nil)
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if got != "" {
		t.Errorf("Summarize(nil) = %q, want empty", got)
	}
}

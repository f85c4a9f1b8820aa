package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChat(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: "the answer"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.Chat(context.Background(), "llama3.1", []Message{{Role: "user", Content: "hi"}}, &Options{Temperature: 0.5})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if got != "the answer" {
		t.Errorf("Chat = %q, want %q", got, "the answer")
	}
	if gotBody.Model != "llama3.1" || gotBody.Stream {
		t.Errorf("request = %+v, want model llama3.1 and stream=false", gotBody)
	}
	if gotBody.Options == nil || gotBody.Options.Temperature != 0.5 {
		t.Errorf("options = %+v, want temperature 0.5", gotBody.Options)
	}
}

func TestChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Chat(context.Background(), "nope", []Message{{Role: "user", Content: "hi"}}, nil); err == nil {
		t.Fatal("expected error on non-200 response, got nil")
	}
}

func TestIsRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if !c.IsRunning(context.Background()) {
		t.Error("IsRunning = false for live server")
	}

	srv.Close()
	if c.IsRunning(context.Background()) {
		t.Error("IsRunning = true for closed server")
	}
}

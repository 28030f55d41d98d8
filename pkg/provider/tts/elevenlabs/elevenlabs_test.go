package elevenlabs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSynthesize(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 0, 2, 0, 3, 0}
	var gotPath, gotKey string
	var gotReq map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("xi-api-key")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)
		w.Write(pcm)
	}))
	defer srv.Close()

	p, err := New("key", "voice-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio, err := p.Synthesize(context.Background(), "hello caller")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != string(pcm) {
		t.Fatalf("audio = %v, want %v", audio, pcm)
	}
	if !strings.Contains(gotPath, "/v1/text-to-speech/voice-1") {
		t.Fatalf("path = %q", gotPath)
	}
	if !strings.Contains(gotPath, "output_format=pcm_16000") {
		t.Fatalf("missing output_format in %q", gotPath)
	}
	if gotKey != "key" {
		t.Fatalf("xi-api-key = %q", gotKey)
	}
	if gotReq["text"] != "hello caller" {
		t.Fatalf("request text = %v", gotReq["text"])
	}
}

func TestSynthesizeErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty text rejected", func(t *testing.T) {
		t.Parallel()
		p, _ := New("key", "voice-1")
		if _, err := p.Synthesize(context.Background(), ""); err == nil {
			t.Fatal("want error for empty text")
		}
	})

	t.Run("status error surfaces the code", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		p, _ := New("key", "voice-1", WithBaseURL(srv.URL))
		_, err := p.Synthesize(context.Background(), "hi")
		if err == nil || !strings.Contains(err.Error(), "429") {
			t.Fatalf("want 429 in error, got %v", err)
		}
	})

	t.Run("missing credentials rejected at construction", func(t *testing.T) {
		t.Parallel()
		if _, err := New("", "voice"); err == nil {
			t.Fatal("want error for empty apiKey")
		}
		if _, err := New("key", ""); err == nil {
			t.Fatal("want error for empty voiceID")
		}
	})
}

package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"FeedbackLoop/internal/config"
)

func TestPublishDigestPostsForm(t *testing.T) {
	t.Parallel()

	var gotPath, gotChatID, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChatID = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := New(config.TelegramConfig{BotToken: "token-1", ChatID: "chat-1"})
	n.baseURL = server.URL

	if err := n.PublishDigest(context.Background(), "processed 3, failed 0"); err != nil {
		t.Fatalf("PublishDigest returned error: %v", err)
	}

	if gotPath != "/bottoken-1/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotChatID != "chat-1" || gotText != "processed 3, failed 0" {
		t.Fatalf("unexpected form values: %q %q", gotChatID, gotText)
	}
}

func TestPublishDigestNonOKStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	n := New(config.TelegramConfig{BotToken: "t", ChatID: "c"})
	n.baseURL = server.URL

	if err := n.PublishDigest(context.Background(), "x"); err == nil {
		t.Fatal("expected error for non-OK status")
	}
}

func TestPublishDigestMisconfigured(t *testing.T) {
	t.Parallel()

	n := New(config.TelegramConfig{})
	if err := n.PublishDigest(context.Background(), "x"); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}

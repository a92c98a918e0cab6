package alerting

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSinkPostsJSON(t *testing.T) {
	var gotBody map[string]string
	var gotContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL)
	err := sink.Send(context.Background(), "🟢 DOCK_READY: Door D1")

	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "🟢 DOCK_READY: Door D1", gotBody["text"])
}

func TestWebhookSinkNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL)
	assert.Error(t, sink.Send(context.Background(), "msg"))
}

func TestWebhookSinkUnreachableIsError(t *testing.T) {
	sink := NewWebhookSink("http://127.0.0.1:1/webhook")
	assert.Error(t, sink.Send(context.Background(), "msg"))
}

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWebhookSinkDeliver(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("content-type"))
		err := json.NewDecoder(r.Body).Decode(&received)
		require.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := NewWebhookSink(WebhookSinkOptions{Url: server.URL})
	err := sink.Deliver(context.Background(), []Unit{
		{
			Heading:  "Updated: Thing",
			Body:     "body",
			Color:    0x3498db,
			ImageURL: "http://img/p.png",
			Footer:   "My Collection",
		},
		{Heading: "New item: Other", Body: "body2", Color: 0x2ecc71},
	})
	require.NoError(t, err)

	require.Len(t, received.Embeds, 2)
	require.Equal(t, "Updated: Thing", received.Embeds[0].Title)
	require.Equal(t, 0x3498db, received.Embeds[0].Color)
	require.NotNil(t, received.Embeds[0].Image)
	require.Equal(t, "http://img/p.png", received.Embeds[0].Image.Url)
	require.Equal(t, "My Collection", received.Embeds[0].Footer.Text)
	require.Nil(t, received.Embeds[1].Image)
	require.Nil(t, received.Embeds[1].Footer)
}

func TestWebhookSinkRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	sink := NewWebhookSink(WebhookSinkOptions{Url: server.URL})
	err := sink.Deliver(context.Background(), []Unit{{Heading: "x"}})
	require.Error(t, err)
}

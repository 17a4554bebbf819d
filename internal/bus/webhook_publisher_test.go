package bus_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerops/txnengine/internal/bus"
)

func TestWebhookPublisher_Publish_Success(t *testing.T) {
	var gotBody []byte
	var gotTopic, gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotTopic = r.Header.Get("X-Ledgerops-Topic")
		gotKey = r.Header.Get("X-Ledgerops-Key")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	pub := bus.NewWebhookPublisher(srv.URL)
	err := pub.Publish(context.Background(), "transactions.ledger", bus.Message{Key: "txn-1", Value: []byte(`{"a":1}`)})

	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(gotBody))
	assert.Equal(t, "transactions.ledger", gotTopic)
	assert.Equal(t, "txn-1", gotKey)
}

func TestWebhookPublisher_Publish_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom")) //nolint:errcheck
	}))
	defer srv.Close()

	pub := bus.NewWebhookPublisher(srv.URL)
	err := pub.Publish(context.Background(), "t", bus.Message{Key: "k", Value: []byte("v")})
	require.Error(t, err)
}

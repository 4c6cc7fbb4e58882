package publisher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketchat/internal/core/events"
)

func TestPublishPostsEncodedEventWithSecret(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "s3cret-value", r.Header.Get(SecretHeader))
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.URL, "s3cret-value", time.Second).WithClient(srv.Client())
	ev := events.PresenceChanged{UserID: "u1", IsOnline: true, LastSeenAt: "2025-01-01T00:00:00.000Z"}

	res := p.Publish(context.Background(), ev)
	require.True(t, res.OK())

	decoded, err := events.Decode(got)
	require.NoError(t, err)
	require.Equal(t, ev, decoded)
}

func TestPublishReportsNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.URL, "wrong-secret", time.Second).WithClient(srv.Client())
	res := p.Publish(context.Background(), events.PresenceChanged{UserID: "u1"})
	require.False(t, res.OK())
	require.False(t, res.Delivered)
	require.ErrorContains(t, res.Err, "401")
}

func TestPublishTimesOut(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewHTTPPublisher(srv.URL, "s3cret-value", 50*time.Millisecond).WithClient(srv.Client())
	start := time.Now()
	res := p.Publish(context.Background(), events.PresenceChanged{UserID: "u1"})
	require.False(t, res.OK())
	require.Error(t, res.Err)
	require.Less(t, time.Since(start), 2*time.Second)
	require.EqualValues(t, 1, calls.Load())
}

func TestPublishWithoutConfigurationFailsFast(t *testing.T) {
	res := NewHTTPPublisher("", "", 0).Publish(context.Background(), events.PresenceChanged{UserID: "u1"})
	require.ErrorIs(t, res.Err, ErrNotConfigured)
}

package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(maxAttempts int, baseDelay time.Duration) (*Notifier, *[]time.Duration) {
	n := New(Config{MaxAttempts: maxAttempts, BaseDelay: baseDelay})

	var delays []time.Duration
	n.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return n, &delays
}

func TestNotifySucceedsFirstAttempt(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, delays := newTestNotifier(5, time.Second)

	ack, err := n.Notify(context.Background(), server.URL, map[string]string{"status": "success"}, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, ack.StatusCode)
	assert.Equal(t, 1, ack.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	assert.Empty(t, *delays)
}

func TestNotifyStopsAtFirstSuccess(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, _ := newTestNotifier(5, time.Second)

	var attempts []int
	ack, err := n.Notify(context.Background(), server.URL, nil, func(attempt, statusCode int, err error) {
		attempts = append(attempts, attempt)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, ack.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests), "no requests after the first success")
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestNotifyExhaustsAllAttempts(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n, _ := newTestNotifier(4, time.Second)

	_, err := n.Notify(context.Background(), server.URL, nil, nil)
	require.Error(t, err)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, 4, deliveryErr.Attempts)
	assert.Equal(t, http.StatusInternalServerError, deliveryErr.LastStatus)
	assert.Equal(t, int32(4), atomic.LoadInt32(&requests), "exactly MaxAttempts requests on permanent failure")
}

func TestNotifyRetriesClientErrors(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, _ := newTestNotifier(3, time.Second)

	ack, err := n.Notify(context.Background(), server.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ack.Attempts, "4xx responses are retriable")
}

func TestNotifyRetriesTransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	n, _ := newTestNotifier(3, time.Second)

	var statuses []int
	_, err := n.Notify(context.Background(), server.URL, nil, func(attempt, statusCode int, err error) {
		statuses = append(statuses, statusCode)
		assert.Error(t, err)
	})
	require.Error(t, err)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, 3, deliveryErr.Attempts)
	assert.Equal(t, 0, deliveryErr.LastStatus)
	assert.Equal(t, []int{0, 0, 0}, statuses)
}

func TestNotifyBackoffSchedule(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n, delays := newTestNotifier(5, time.Second)

	_, err := n.Notify(context.Background(), server.URL, nil, nil)
	require.Error(t, err)

	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, *delays)
	for i := 1; i < len(*delays); i++ {
		assert.GreaterOrEqual(t, (*delays)[i], (*delays)[i-1], "delays never decrease")
	}
}

func TestNotifyBackoffCapped(t *testing.T) {
	n := New(Config{MaxAttempts: 12, BaseDelay: time.Second})

	assert.Equal(t, time.Second, n.Delay(2))
	assert.Equal(t, 32*time.Second, n.Delay(7))
	assert.Equal(t, maxDelay, n.Delay(8))
	assert.Equal(t, maxDelay, n.Delay(12))
}

func TestNotifyContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := New(Config{MaxAttempts: 5, BaseDelay: time.Second})
	n.sleep = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.Notify(ctx, server.URL, nil, nil)
	require.Error(t, err)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.ErrorIs(t, deliveryErr.Err, context.Canceled)
}

func TestNotifyEmptyURL(t *testing.T) {
	n, _ := newTestNotifier(5, time.Second)

	_, err := n.Notify(context.Background(), "", nil, nil)
	require.Error(t, err)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, 0, deliveryErr.Attempts)
}

package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idstatus/pkg/platform/circuit"
)

func TestDo(t *testing.T) {
	t.Run("returns any HTTP status with body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"matches":2}`))
		}))
		defer srv.Close()

		c := NewClient("resolver", srv.URL+"/")
		resp, err := c.Do(context.Background(), http.MethodPost, "/match", map[string]string{"nino": "AB123456C"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.JSONEq(t, `{"matches":2}`, string(resp.Body))
	})

	t.Run("network failure is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewClient("resolver", url).Do(context.Background(), http.MethodGet, "/", nil)
		require.Error(t, err)
		assert.True(t, IsTransport(err))
	})

	t.Run("context deadline is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := NewClient("resolver", srv.URL).Do(ctx, http.MethodGet, "/", nil)
		require.Error(t, err)
		assert.True(t, IsTransport(err))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("open breaker short-circuits", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewClient("classifier", srv.URL,
			WithBreaker(circuit.New("classifier", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))))
		for range 2 {
			resp, err := c.Do(context.Background(), http.MethodGet, "/", nil)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		}
		_, err := c.Do(context.Background(), http.MethodGet, "/", nil)
		require.ErrorIs(t, err, ErrCircuitOpen)
		assert.True(t, IsTransport(err))
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestDecode(t *testing.T) {
	c := NewClient("resolver", "http://unused")
	var out struct {
		ID string `json:"applicationId"`
	}
	require.NoError(t, c.Decode(&Response{StatusCode: 200, Body: []byte(`{"applicationId":"APP-1"}`)}, &out))
	assert.Equal(t, "APP-1", out.ID)

	err := c.Decode(&Response{StatusCode: 200, Body: []byte(`<html>`)}, &out)
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
	assert.False(t, IsTransport(err))
}

func TestStatusError(t *testing.T) {
	c := NewClient("resolver", "http://unused")
	err := c.StatusError(&Response{StatusCode: http.StatusServiceUnavailable})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.Equal(t, "resolver: unexpected status 503", err.Error())
}

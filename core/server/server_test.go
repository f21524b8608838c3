package server_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatrelay/core/server"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServerLifecycle(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("serves requests until stopped", func(t *testing.T) {
		addr := freeAddr(t)
		srv := server.New(addr, server.WithShutdownTimeout(time.Second))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- srv.Start(ctx, handler) }()

		var resp *http.Response
		require.Eventually(t, func() bool {
			var err error
			resp, err = http.Get(fmt.Sprintf("http://%s/", addr))
			return err == nil
		}, 2*time.Second, 10*time.Millisecond)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		require.NoError(t, srv.Stop())
		cancel()
		<-done
	})

	t.Run("run returns nil on context cancellation", func(t *testing.T) {
		addr := freeAddr(t)
		srv := server.New(addr, server.WithShutdownTimeout(time.Second))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Run(ctx, handler)() }()

		require.Eventually(t, func() bool {
			resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
			if err != nil {
				return false
			}
			_ = resp.Body.Close()
			return true
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	t.Run("rejects double start", func(t *testing.T) {
		addr := freeAddr(t)
		srv := server.New(addr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- srv.Start(ctx, handler) }()

		require.Eventually(t, func() bool {
			resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
			if err != nil {
				return false
			}
			_ = resp.Body.Close()
			return true
		}, 2*time.Second, 10*time.Millisecond)

		err := srv.Start(ctx, handler)
		assert.ErrorIs(t, err, server.ErrServerAlreadyRunning)

		require.NoError(t, srv.Stop())
		cancel()
		<-done
	})
}

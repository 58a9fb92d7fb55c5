package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Astemirdum/library-catalog/library/config"
)

func TestServer_RunStop(t *testing.T) {
	srv := NewServer(config.HTTPServer{Host: "127.0.0.1", Port: "0", ReadTimeout: time.Second, WriteTimeout: time.Second},
		http.NotFoundHandler())

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	// Shutdown may land before ListenAndServe; both paths must end Run cleanly.
	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

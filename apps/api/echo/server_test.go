//go:build unix

package echoapi_test

import (
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServer_Close(t *testing.T) {
	// keeps the test process alive on SIGINT
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	srv := setup(t)
	require.NoError(t, srv.Close())

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	select {
	case <-sigs:
	case <-time.After(5 * time.Second):
		t.Fatal("SIGINT not received")
	}

	select {
	case sig := <-srv.ShutdownSignal():
		t.Fatalf("closed server still receives signals: %v", sig)
	case <-time.After(100 * time.Millisecond):
	}
}

// ABOUTME: Tests for the hidden fake-api command
// ABOUTME: Serves the in-memory API under /api and shuts down on cancel

package cmd

import (
	"bytes"
	"context"
	"net/http"
	"testing"
)

func TestFakeAPICommand(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan int, 1)
	var buf bytes.Buffer

	go func() { done <- runFakeAPI(ctx, &buf, "127.0.0.1:0", ready) }()
	addr := <-ready

	resp, err := http.Get("http://" + addr + "/api/brands")
	if err != nil {
		t.Fatalf("GET /api/brands: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	if code := <-done; code != exitOK {
		t.Errorf("expected exit code 0, got %d", code)
	}
	mustContain(t, buf.String(), "Serving fake storefront API", "/api")
}

// ABOUTME: Shared fixtures for command tests
// ABOUTME: Points the CLI at an in-memory storefront API and a temporary config dir

package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/hiu1412/carshop/internal/fakeapi"
)

// newTestAPI starts a fake storefront and points the global flags at it.
func newTestAPI(t *testing.T) *fakeapi.Server {
	t.Helper()
	fake := fakeapi.NewServer()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	apiURL = server.URL
	configDir = t.TempDir()
	jsonOutput = false
	t.Cleanup(func() {
		apiURL = ""
		configDir = ""
		jsonOutput = false
	})

	t.Setenv("CARSHOP_CART_DEBOUNCE_MS", "10")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	return fake
}

// signIn logs in as a seeded account.
func signIn(t *testing.T, email string) {
	t.Helper()
	var buf bytes.Buffer
	if code := runLogin(context.Background(), &buf, email, "secret"); code != exitOK {
		t.Fatalf("login as %s: exit code %d\n%s", email, code, buf.String())
	}
}

func mustContain(t *testing.T, output string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !bytes.Contains([]byte(output), []byte(want)) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

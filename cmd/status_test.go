// ABOUTME: Tests for the status command
// ABOUTME: Verifies connectivity, session and cart summary output and exit codes

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatStatusHuman_SignedIn(t *testing.T) {
	total := decimal.RequireFromString("55000.5")
	output := formatStatusHuman(&statusReport{
		APIURL:    "http://shop.example.com/api",
		Reachable: true,
		SignedIn:  true,
		Email:     "customer@example.com",
		Role:      "customer",
		CartLines: 2,
		CartTotal: &total,
	})

	mustContain(t, output, "http://shop.example.com/api", "reachable", "customer@example.com", "2 lines", "55,000.50")
}

func TestFormatStatusHuman_Unreachable(t *testing.T) {
	output := formatStatusHuman(&statusReport{APIURL: "http://x", Error: "connection refused"})
	mustContain(t, output, "unreachable", "connection refused", "not signed in")
}

func TestStatusCommand_SignedOut(t *testing.T) {
	newTestAPI(t)

	var buf bytes.Buffer
	if code := runStatus(context.Background(), &buf); code != exitOK {
		t.Fatalf("expected exit code 0, got %d\n%s", code, buf.String())
	}
	mustContain(t, buf.String(), "reachable", "not signed in")
}

func TestStatusCommand_SignedInJSON(t *testing.T) {
	newTestAPI(t)
	signIn(t, "customer@example.com")

	var buf bytes.Buffer
	if code := runCartAdd(context.Background(), &buf, "car-1", 1); code != exitOK {
		t.Fatalf("add: exit %d\n%s", code, buf.String())
	}

	jsonOutput = true
	buf.Reset()
	if code := runStatus(context.Background(), &buf); code != exitOK {
		t.Fatalf("expected exit code 0, got %d\n%s", code, buf.String())
	}

	var report statusReport
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if !report.Reachable || !report.SignedIn || report.Email != "customer@example.com" {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.CartLines != 1 || report.CartTotal == nil || !report.CartTotal.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("expected one line worth 30000, got %+v", report)
	}
}

func TestStatusCommand_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	apiURL = server.URL
	configDir = t.TempDir()
	defer func() { apiURL, configDir = "", "" }()

	var buf bytes.Buffer
	if code := runStatus(context.Background(), &buf); code != exitError {
		t.Errorf("expected exit code 2, got %d", code)
	}
	mustContain(t, buf.String(), "unreachable")
}

// ABOUTME: Hidden command serving the in-memory storefront API
// ABOUTME: Used for demos and local runs: carshop --api-url http://localhost:8099/api

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hiu1412/carshop/internal/fakeapi"
	"github.com/hiu1412/carshop/internal/logger"
)

var fakeAPIAddr string

var fakeAPICmd = &cobra.Command{
	Use:    "fake-api",
	Short:  "Serve an in-memory storefront API",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runFakeAPI(ctx, os.Stdout, fakeAPIAddr, nil) })
	},
}

func init() {
	rootCmd.AddCommand(fakeAPICmd)
	fakeAPICmd.Flags().StringVar(&fakeAPIAddr, "addr", "127.0.0.1:8099", "Listen address")
}

// runFakeAPI serves until ctx is canceled. ready, when set, receives the bound address.
func runFakeAPI(ctx context.Context, w io.Writer, addr string, ready chan<- string) int {
	logger.Init(logger.Options{Level: "info", Format: "text", Output: os.Stderr})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", fakeapi.NewServer()))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	fmt.Fprintf(w, "Serving fake storefront API on http://%s/api\n", ln.Addr())
	fmt.Fprintln(w, "Accounts: customer@example.com / secret, admin@example.com / secret")
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(w, "Error: %v\n", err)
			return exitError
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Fake API shutdown failed", "error", err)
		}
	}
	return exitOK
}

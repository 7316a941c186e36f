// ABOUTME: Entry point for the carshop CLI
// ABOUTME: Storefront client: catalogue, cart, orders, payments and back office

package main

import (
	"fmt"
	"os"

	"github.com/hiu1412/carshop/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// Command tplmerge merges spreadsheet rows into image and PDF templates.
//
// # Installation
//
//	go install github.com/lvillar/tplmerge/cmd/tplmerge@latest
//
// # Usage
//
//	tplmerge config set --sheets ./data --images ./templates --output-dir ./out
//	tplmerge activate people.xlsx
//	tplmerge placements import people.json
//	tplmerge run
//
// # Host interface
//
// A desktop front end starts "tplmerge serve" and talks JSON-RPC 2.0 over
// its stdin and stdout; see package ipc for the methods.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lvillar/tplmerge/cmd/tplmerge/internal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := internal.Run(ctx, os.Args[1:], os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "tplmerge: %v\n", err)
		stop()
		os.Exit(1)
	}
}

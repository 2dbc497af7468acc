package etl

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/oarkflow/log"
)

// Shutdown cancels ctx when the process receives an interrupt or SIGTERM.
func Shutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v. Cancelling running batch...", sig)
		cancel()
	}()
}

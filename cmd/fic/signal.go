package main

import (
	"os"
	"os/signal"
	"syscall"

	fileintegrity "github.com/mattkeenan/fileintegrity/pkg"
)

// setupSignalHandler returns a channel that is closed on SIGINT or SIGTERM
func setupSignalHandler() <-chan struct{} {
	shutdown := make(chan struct{})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fileintegrity.WarnLog("Received signal %v, stopping", sig)
		close(shutdown)
		signal.Stop(sigChan)
	}()

	return shutdown
}

// Command courierd runs the upload daemon with the default configuration
// lookup. It is the entrypoint for service managers; interactive use goes
// through "courier run".
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"courier/internal/config"
	"courier/internal/daemon"
	"courier/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(os.Getenv("COURIER_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Printf("courierd: %v", err)
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

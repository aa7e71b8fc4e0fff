package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/km-arc/go-persistence/framework/app"
)

func main() {
	application, err := app.Bootstrap() // loads .env automatically
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

package main

import (
	"context"
	"log"

	"github.com/deliverly/order-api/internal/app/worker"
)

func main() {
	if err := worker.Run(context.Background()); err != nil {
		log.Fatalf("order worker exited: %v", err)
	}
}

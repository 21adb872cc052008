package main

import (
	"context"
	"fmt"
	"os"

	"github.com/upb/commerce-gateway/config"
	"github.com/upb/commerce-gateway/server"
)

func main() {
	if err := server.Run(context.Background(), config.ServiceAuth); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/jowin03/Slack-NVD-Integration/pkg/cli"
)

var version = "dev"

func main() {
	// .env is optional; flags and real environment variables take precedence
	_ = godotenv.Load()

	if err := cli.Run(context.Background(), os.Args, version); err != nil {
		os.Exit(1)
	}
}

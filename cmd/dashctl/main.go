package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gitea.jw6.us/james/dashboard/internal/auth"
	"gitea.jw6.us/james/dashboard/internal/cli"
	"gitea.jw6.us/james/dashboard/internal/config"
)

func main() {
	baseURL := flag.String("api", "", "backend base URL (overrides "+cli.BaseURLEnvVar+")")
	flag.Parse()

	config.LoadDotenv()
	if *baseURL == "" {
		*baseURL = os.Getenv(cli.BaseURLEnvVar)
	}

	tokens, err := auth.DefaultFileTokenStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Run(ctx, flag.Args(), cli.Options{
		BaseURL: *baseURL,
		Tokens:  tokens,
	})
	stop()
	os.Exit(code)
}

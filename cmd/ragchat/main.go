/*
Package main is the entry point for the ragchat CLI.

Usage:

	ragchat [command]

Available Commands:

	serve       Run the HTTP API
	chat        Chat with a user's documents in the terminal
	ingest      Index local PDF or text files for a user
	admin       Account maintenance
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"ragchat/internal/cli"
)

func main() {
	_ = godotenv.Load()

	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

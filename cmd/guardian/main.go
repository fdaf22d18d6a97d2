package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Package main is the kensaku CLI entry point.
package main

import (
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	// A .env file next to the binary is optional; KENSAKU_* variables may also come from the shell.
	_ = godotenv.Load()
	Execute()
}

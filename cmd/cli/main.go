package main

import (
	"github.com/joho/godotenv"

	"github.com/crucial707/asset-audit/cmd/cli/root"
)

func main() {
	// AUDIT_API_URL and AUDIT_API_TOKEN may come from a local .env.
	_ = godotenv.Load()
	root.Execute()
}

package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/opsdeck/pairing-server-go/internal/util"
)

// Generates a tenant ID and API token, printing the SQL to provision the
// tenant. The raw token is shown exactly once; only its hash is stored.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/create-tenant.go <tenant-name>\n")
		os.Exit(1)
	}

	name := os.Args[1]

	token, err := util.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	id := uuid.NewString()

	fmt.Printf("Tenant ID:  %s\n", id)
	fmt.Printf("API token:  %s\n", token)
	fmt.Println()
	fmt.Printf("INSERT INTO tenants (id, name, token_hash) VALUES ('%s', '%s', '%s');\n",
		id, name, util.HashToken(token))
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/techvaseegrah/gymsaas-sub001/internal/auth"
	"github.com/techvaseegrah/gymsaas-sub001/internal/config"
)

// Token mints an access token signed with JWT_SIGNING_KEY, for kiosks and local testing.
func main() {
	subject := flag.String("sub", "", "token subject: staff account or fighter id")
	role := flag.String("role", auth.RoleAdmin, "admin, superadmin or fighter")
	flag.Parse()

	cfg := config.Load()
	tok, err := auth.NewTokens(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL).Issue(*subject, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tok); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

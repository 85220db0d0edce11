package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"cryptodash.org/internal/ids"
	"cryptodash.org/internal/store/pg"
)

// mkadmin creates an admin account, or promotes an existing account found by
// email. Intended for first-deployment bootstrap and break-glass recovery.
func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	var (
		dsn      = flag.String("dsn", os.Getenv("CRYPTODASH_PG_DSN"), "PostgreSQL DSN")
		email    = flag.String("email", "", "Account email (required)")
		name     = flag.String("name", "Administrator", "Display name for a newly created account")
		password = flag.String("password", "", "Password for a newly created account")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or CRYPTODASH_PG_DSN")
	}
	addr := strings.TrimSpace(strings.ToLower(*email))
	if addr == "" || !strings.Contains(addr, "@") {
		log.Fatal("a valid -email is required")
	}

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := store.DB().ExecContext(ctx, `
		update users set role = 'admin', updated_at = now() where email = $1
	`, addr)
	if err != nil {
		log.Fatalf("promote: %v", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("Promoted %s to admin", addr)
		return
	}

	if *password == "" {
		log.Fatalf("no account with email %s; pass -password to create one", addr)
	}
	if len(*password) < 8 {
		log.Fatal("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(*password), 12)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx, `
		insert into users (id, email, name, role, password_hash, created_at)
		values ($1, $2, $3, 'admin', $4, now())
	`, ids.New(), addr, *name, string(hash)); err != nil {
		log.Fatalf("create admin: %v", err)
	}
	log.Printf("Created admin account %s", addr)
}

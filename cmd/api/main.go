package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cryptodash.org/internal/audit"
	"cryptodash.org/internal/auth"
	"cryptodash.org/internal/httpapi"
	"cryptodash.org/internal/obs"
	"cryptodash.org/internal/store/pg"
	"cryptodash.org/internal/user"
)

var version = "0.3.1"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("CRYPTODASH_COMMIT"))

	dsn := os.Getenv("CRYPTODASH_PG_DSN")
	if dsn == "" {
		log.Fatal("CRYPTODASH_PG_DSN is required")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	recorder := audit.NewRecorder(store)
	users, err := user.NewManager(pg.Users{Store: store}, recorder)
	if err != nil {
		log.Fatalf("user manager: %v", err)
	}
	reader := audit.NewReader(store, store)

	validity, err := auth.ParseValidity(os.Getenv("CRYPTODASH_CLAIM_VALIDITY"))
	if err != nil {
		log.Fatalf("claim validity: %v", err)
	}
	var resolver auth.RoleResolver
	if validity == auth.ValidityRevalidate {
		resolver = func(ctx context.Context, userID string) (string, error) {
			u, err := store.Find(ctx, userID)
			if err != nil {
				return "", err
			}
			return string(u.Role), nil
		}
	}
	gate, err := auth.NewGate(
		auth.WithRule("/admin", true),
		auth.WithRule("/api/admin", true),
		auth.WithRule("/dashboard", false),
		auth.WithValidity(validity, resolver),
	)
	if err != nil {
		log.Fatalf("authorization gate: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, users, reader, gate)

	addr := os.Getenv("CRYPTODASH_ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting cryptodash-admin-api %s on %s (claim validity: %s)", version, srv.Addr, validity)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}

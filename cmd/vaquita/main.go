package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/pmonasterio/vaquita/internal/config"
	"github.com/pmonasterio/vaquita/internal/console"
	"github.com/pmonasterio/vaquita/internal/database"
	"github.com/pmonasterio/vaquita/internal/database/repository"
	"github.com/pmonasterio/vaquita/internal/gateway"
	"github.com/pmonasterio/vaquita/internal/messenger"
	"github.com/pmonasterio/vaquita/internal/oracle"
	"github.com/pmonasterio/vaquita/internal/secrets"
	"github.com/pmonasterio/vaquita/internal/seed"
	"github.com/pmonasterio/vaquita/internal/service"
	"github.com/pmonasterio/vaquita/pkg/logging"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("mkdir db dir: %v", err)
	}
	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		if err := runServe(ctx, cfg, db); err != nil {
			log.Fatalf("serve: %v", err)
		}
	case "console":
		if err := runConsole(ctx, db); err != nil {
			log.Fatalf("console: %v", err)
		}
	case "seed":
		if err := runSeed(ctx, db, os.Args[2:]); err != nil {
			log.Fatalf("seed: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "usage: vaquita [serve|console|seed]\n")
		os.Exit(2)
	}
}

func runServe(ctx context.Context, cfg config.Config, db *sql.DB) error {
	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	items := repository.NewItemRepo(db)
	invoices := repository.NewInvoiceRepo(db)

	provider := oracleProvider(cfg)

	sessionSvc := &service.SessionService{Users: users, Sessions: sessions}
	dispatcher := &service.Dispatcher{
		Provider:   provider,
		Matcher:    &service.Matcher{Users: users, Sessions: sessions, Items: items, Provider: provider},
		Reconciler: &service.Reconciler{DB: db},
		Invoices:   &service.InvoiceService{DB: db},
		Sessions:   sessionSvc,
		Agent:      &service.AgentService{Provider: provider, Sessions: sessionSvc, Users: users, Items: items, Invoices: invoices},
		Sender:     sender(cfg),
	}

	srv := gateway.New(dispatcher)
	log.Printf("listening on %s", cfg.Server.Addr)
	return http.ListenAndServe(cfg.Server.Addr, srv.Router())
}

// runSeed loads the demo ledger. With -reset it wipes existing data first;
// without it, seeding a non-empty database is a no-op.
func runSeed(ctx context.Context, db *sql.DB, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	reset := fs.Bool("reset", false, "wipe all ledger data before seeding")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *reset {
		if err := (&service.MaintenanceService{DB: db}).Reset(ctx); err != nil {
			return err
		}
	}
	return seed.Demo(ctx, db)
}

func runConsole(ctx context.Context, db *sql.DB) error {
	app := console.New(ctx, console.Repos{
		Users:    repository.NewUserRepo(db),
		Sessions: repository.NewSessionRepo(db),
		Invoices: repository.NewInvoiceRepo(db),
		Items:    repository.NewItemRepo(db),
		Payments: repository.NewPaymentRepo(db),
	})
	_, err := tea.NewProgram(app, tea.WithAltScreen()).Run()
	return err
}

func oracleProvider(cfg config.Config) oracle.Provider {
	switch strings.ToLower(strings.TrimSpace(cfg.Oracle.Provider)) {
	case "heuristic":
		return oracle.NewHeuristicProvider()
	default:
		return oracle.NewOpenAIProvider(resolveAPIKey(cfg), cfg.Oracle.Model)
	}
}

// resolveAPIKey looks for the oracle key in the configured env var, then
// the encrypted key store, then plain config.
func resolveAPIKey(cfg config.Config) string {
	env := strings.TrimSpace(cfg.Oracle.APIKeyEnv)
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	if k, err := secrets.Fetch(cfg.Oracle.Provider); err == nil {
		return k
	}
	return strings.TrimSpace(cfg.Oracle.APIKey)
}

func sender(cfg config.Config) messenger.Sender {
	if strings.EqualFold(cfg.WhatsApp.Mode, "cloud") {
		return messenger.NewCloudSender(cfg.WhatsApp.APIURL, cfg.WhatsApp.PhoneNumberID, resolveWhatsAppToken(cfg))
	}
	return messenger.NewLogSender()
}

func resolveWhatsAppToken(cfg config.Config) string {
	env := strings.TrimSpace(cfg.WhatsApp.TokenEnv)
	if env == "" {
		env = "WHATSAPP_TOKEN"
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	if t, err := secrets.Fetch("whatsapp"); err == nil {
		return t
	}
	return ""
}

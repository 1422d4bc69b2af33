package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/tantawy/erp/internal/erp"
	"github.com/tantawy/erp/internal/httpapi"
	"github.com/tantawy/erp/internal/service/invoice"
	"github.com/tantawy/erp/internal/storage/memory"
	pgstore "github.com/tantawy/erp/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional .env for local runs; real deployments set the environment directly.
	_ = godotenv.Load()

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLoggerFromEnv()
	slog.SetDefault(logger)

	var handler http.Handler
	var closeFn func()

	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = func() { pg.Close() }

		chart, haveChart, err := chartFromEnv()
		if err != nil {
			logger.Error("invalid chart configuration", "err", err)
			os.Exit(1)
		}
		// Optional dev seed for compose/local
		if dev := strings.ToLower(strings.TrimSpace(os.Getenv("DEV_SEED"))); dev == "1" || dev == "true" || dev == "yes" {
			res, err := pg.SeedDev(ctx)
			if err != nil {
				logger.Error("dev seed failed", "err", err)
			} else {
				if !haveChart {
					chart = res.Chart
					haveChart = true
				}
				logDevSeed(logger, "postgres", res.Chart, res.Party, res.Store, res.Item)
				printDevSeedBanner(res.Chart, res.Party, res.Store, res.Item)
			}
		}
		if !haveChart {
			logger.Error("chart accounts not configured; set ERP_CASH_ACCOUNT_ID, ERP_CARD_ACCOUNT_ID, ERP_VENDOR_DEFERRED_ACCOUNT_ID and ERP_CUSTOMER_DEFERRED_ACCOUNT_ID (or DEV_SEED=1)")
			os.Exit(1)
		}
		if err := chart.Validate(); err != nil {
			logger.Error("invalid chart configuration", "err", err)
			os.Exit(1)
		}
		svc := invoice.New(pg, pg, chart)
		handler = httpapi.New(svc, pg, pg, logger).Handler()
		logger.Info("storage backend: postgres")
	} else {
		// Default to in-memory store with a small dev seed
		store := memory.New()
		chart := erp.Chart{Cash: uuid.New(), Card: uuid.New(), VendorDeferred: uuid.New(), CustomerDeferred: uuid.New()}
		store.SeedAccount(erp.Account{ID: chart.Cash, Name: "Cash", Code: 35})
		store.SeedAccount(erp.Account{ID: chart.Card, Name: "Card", Code: 10})
		store.SeedAccount(erp.Account{ID: chart.VendorDeferred, Name: "Vendors Deferred", Code: 38})
		store.SeedAccount(erp.Account{ID: chart.CustomerDeferred, Name: "Customers Deferred", Code: 36})
		party := erp.Party{ID: uuid.New(), Name: "Walk-in Customer", Type: erp.PartyBoth}
		st := erp.Store{ID: uuid.New(), Name: "Main Store"}
		item := erp.Item{ID: uuid.New(), Name: "Demo Item"}
		store.SeedParty(party)
		store.SeedStore(st)
		store.SeedItem(item)
		logDevSeed(logger, "memory", chart, party, st, item)
		printDevSeedBanner(chart, party, st, item)

		svc := invoice.New(store, store, chart)
		handler = httpapi.New(svc, store, store, logger).Handler()
		logger.Info("storage backend: memory")
	}

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           handler,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("erp service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

// chartFromEnv reads the four posting accounts from the environment.
// Returns haveChart=false when none of the variables are set.
func chartFromEnv() (erp.Chart, bool, error) {
	vars := []struct {
		name string
		dst  *uuid.UUID
	}{
		{"ERP_CASH_ACCOUNT_ID", nil},
		{"ERP_CARD_ACCOUNT_ID", nil},
		{"ERP_VENDOR_DEFERRED_ACCOUNT_ID", nil},
		{"ERP_CUSTOMER_DEFERRED_ACCOUNT_ID", nil},
	}
	var chart erp.Chart
	vars[0].dst = &chart.Cash
	vars[1].dst = &chart.Card
	vars[2].dst = &chart.VendorDeferred
	vars[3].dst = &chart.CustomerDeferred

	seen := 0
	for _, v := range vars {
		raw := strings.TrimSpace(os.Getenv(v.name))
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return erp.Chart{}, false, fmt.Errorf("%s: %w", v.name, err)
		}
		*v.dst = id
		seen++
	}
	if seen == 0 {
		return erp.Chart{}, false, nil
	}
	if seen < len(vars) {
		return erp.Chart{}, false, fmt.Errorf("chart accounts partially configured: %d of %d set", seen, len(vars))
	}
	return chart, true, nil
}

// logDevSeed emits structured logs with useful IDs
func logDevSeed(l *slog.Logger, backend string, chart erp.Chart, party erp.Party, store erp.Store, item erp.Item) {
	l.Info("DEV seed ("+backend+")",
		"party_id", party.ID.String(),
		"store_id", store.ID.String(),
		"item_id", item.ID.String(),
		"cash_account_id", chart.Cash.String(),
		"card_account_id", chart.Card.String(),
		"vendor_deferred_account_id", chart.VendorDeferred.String(),
		"customer_deferred_account_id", chart.CustomerDeferred.String(),
	)
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(chart erp.Chart, party erp.Party, store erp.Store, item erp.Item) {
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("party_id: %s\n", party.ID.String())
	fmt.Printf("store_id: %s\n", store.ID.String())
	fmt.Printf("item_id: %s\n", item.ID.String())
	fmt.Printf("cash_account_id: %s\n", chart.Cash.String())
	fmt.Printf("card_account_id: %s\n", chart.Card.String())
	fmt.Printf("vendor_deferred_account_id: %s\n", chart.VendorDeferred.String())
	fmt.Printf("customer_deferred_account_id: %s\n", chart.CustomerDeferred.String())
	fmt.Println("==================================================")
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLoggerFromEnv() *slog.Logger {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

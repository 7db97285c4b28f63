// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal containers

	"github.com/Shivanand-hulikatti/session-booking/internal/config"
	"github.com/Shivanand-hulikatti/session-booking/internal/database"
	"github.com/Shivanand-hulikatti/session-booking/internal/handler"
	"github.com/Shivanand-hulikatti/session-booking/internal/notify"
	"github.com/Shivanand-hulikatti/session-booking/internal/repository"
	"github.com/Shivanand-hulikatti/session-booking/internal/repository/memstore"
	"github.com/Shivanand-hulikatti/session-booking/internal/roster"
	"github.com/Shivanand-hulikatti/session-booking/internal/scheduler"
	"github.com/Shivanand-hulikatti/session-booking/internal/service"
)

// storage is everything the service needs from a backend.
type storage interface {
	service.LedgerStore
	service.EmailEventWriter
	notify.EventStore
	handler.Pinger
}

// pgStorage joins the two PostgreSQL repositories behind one value.
type pgStorage struct {
	*repository.BookingRepository
	*repository.EmailEventRepository
	ping func(context.Context) error
}

func (s pgStorage) Ping(ctx context.Context) error { return s.ping(ctx) }

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Configuration and logging ─────────────────────────────────────
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// ── 2. Storage ───────────────────────────────────────────────────────
	var store storage
	switch cfg.Storage {
	case "memory":
		store = memstore.New()
		log.Warn("using in-memory storage, data is lost on exit")
	default:
		pool, err := database.NewPool(ctx, cfg.DB, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		store = pgStorage{
			BookingRepository:    repository.NewBookingRepository(pool),
			EmailEventRepository: repository.NewEmailEventRepository(pool),
			ping:                 pool.Ping,
		}
		log.Info("connected to PostgreSQL", slog.String("host", cfg.DB.Host), slog.String("db", cfg.DB.Name))
	}

	// ── 3. Roster and notifications ──────────────────────────────────────
	r := roster.Default(cfg.AdminEmail)
	if cfg.RosterFile != "" {
		if r, err = roster.Load(cfg.RosterFile, cfg.AdminEmail); err != nil {
			return err
		}
	}

	var sender notify.Sender = notify.NewLogSender(log)
	if cfg.Mail.Sender == "amqp" {
		amqpSender, err := notify.NewAMQPSender(cfg.RabbitURL, cfg.Mail.Exchange, cfg.Mail.RoutingKey)
		if err != nil {
			return err
		}
		defer amqpSender.Close()
		sender = amqpSender
	}

	// ── 4. Wire up layers ────────────────────────────────────────────────
	ledger := service.NewLedger(store, store, log)
	dispatcher := notify.NewDispatcher(sender, r, ledger, cfg.Mail.From, log)
	window := service.BookingWindow{
		Location:    loc,
		CutoffHour:  cfg.BookingCutoffHour,
		HorizonDays: cfg.BookingHorizonDays,
	}
	desk := service.NewDesk(ledger, r, dispatcher, window, service.DefaultCatalog(r.Subjects(), r.Teachers()), log)
	h := handler.NewBookingHandler(ledger, desk, notify.NewLog(store, dispatcher), store)

	sched := scheduler.New(loc, log)
	if cfg.ReminderSchedule != "" {
		if err := sched.AddReminders(cfg.ReminderSchedule, scheduler.NewReminders(ledger, dispatcher, loc, log)); err != nil {
			return err
		}
	}
	sched.Start()
	log.Info("scheduler started", slog.Int("jobs", sched.Entries()))

	// ── 5. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.NewRouter(h, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	sched.Stop(shutdownCtx)
	desk.Wait()
	log.Info("server stopped")
	return nil
}

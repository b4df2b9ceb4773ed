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

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/config"
	appHTTP "github.com/DeiversonMedeiros/multiweave-core-sub010/internal/handler/http"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/cron"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/database"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/jwt"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/metrics"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/notify"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/sse"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/repository/postgresql"
	calclogService "github.com/DeiversonMedeiros/multiweave-core-sub010/internal/service/calclog"
	notificationService "github.com/DeiversonMedeiros/multiweave-core-sub010/internal/service/notification"
	payrollService "github.com/DeiversonMedeiros/multiweave-core-sub010/internal/service/payroll"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer db.Close()

	employeeRepo := postgresql.NewEmployeeRepository(db)
	timeRecordRepo := postgresql.NewTimeRecordRepository(db)
	workScheduleRepo := postgresql.NewWorkScheduleRepository(db)
	configRepo := postgresql.NewPayrollConfigRepository(db)
	taxTableRepo := postgresql.NewTaxTableRepository(db)
	benefitRepo := postgresql.NewBenefitRepository(db)
	pendingRepo := postgresql.NewPendingDeductionRepository(db)
	resultRepo := postgresql.NewPayrollResultRepository(db)
	runLogRepo := postgresql.NewRunLogRepository(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	payrollMetrics := metrics.NewPayrollMetrics(registry)

	hub := sse.NewHub()
	metrics.RegisterStreamSubscribers(registry, hub.TotalSubscribers)
	tracker := calclogService.NewTracker(runLogRepo)

	// Slow channels go through the dispatcher; the SSE summary stays inline.
	var slow notify.Multi
	if cfg.SMTP.Host != "" {
		emailNotifier, err := notify.NewEmailNotifier(cfg.SMTP, cfg.Notifier.Recipients)
		if err != nil {
			return fmt.Errorf("failed to initialize email notifier: %w", err)
		}
		slow = append(slow, emailNotifier)
	}
	var serviceBus *notify.ServiceBusNotifier
	if cfg.ServiceBus.ConnectionString != "" {
		serviceBus, err = notify.NewServiceBusNotifier(cfg.ServiceBus.ConnectionString, cfg.ServiceBus.Queue)
		if err != nil {
			return fmt.Errorf("failed to initialize service bus notifier: %w", err)
		}
		slow = append(slow, serviceBus)
	}
	dispatcher := notificationService.NewDispatcher(slow, notificationService.Config{})
	notifiers := notify.Multi{notify.NewSSENotifier(hub), dispatcher}

	policy, err := payrollService.ParseProgressPolicy(cfg.Engine.ProgressPolicy)
	if err != nil {
		return err
	}
	engine := payrollService.NewParallelEngine(
		payrollService.NewSnapshotService(configRepo, taxTableRepo, employeeRepo),
		payrollService.NewInputService(timeRecordRepo, workScheduleRepo, benefitRepo, pendingRepo),
		payrollService.NewCalculator(nil, resultRepo),
		tracker,
		notifiers,
		payrollMetrics,
		payrollService.EngineOptions{
			DefaultConcurrency: cfg.Engine.MaxConcurrency,
			ConcurrencyCap:     cfg.Engine.ConcurrencyCap,
			ProgressBuffer:     cfg.Engine.ProgressBuffer,
			ProgressPolicy:     policy,
		},
	)
	runService := payrollService.NewRunService(engine, tracker, resultRepo, hub, cfg.Engine.RunTimeout)

	scheduler := cron.NewScheduler()
	if err := cron.NewPayrollJobs(tracker, cfg.Engine.StaleRunAfter, cfg.Engine.StaleRunCheck).RegisterJobs(scheduler); err != nil {
		return fmt.Errorf("failed to register cron jobs: %w", err)
	}
	scheduler.Start()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.StreamTokenExpiry)
	payrollHandler := appHTTP.NewPayrollHandler(runService, JWTService, hub)
	router := appHTTP.NewRouter(cfg.App, JWTService, payrollHandler, registry)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownTimeout)
	defer cancel()

	var errs []error
	// Open SSE streams end when their runs finish, so stop runs before the server.
	if err := runService.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("payroll runs: %w", err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	scheduler.Stop()
	dispatcher.Stop()
	if serviceBus != nil {
		if err := serviceBus.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("service bus: %w", err))
		}
	}

	slog.Info("Server stopped")
	return errors.Join(errs...)
}

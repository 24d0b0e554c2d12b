package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/example/volunteer-coordinator/internal/application"
	"github.com/example/volunteer-coordinator/internal/config"
	httptransport "github.com/example/volunteer-coordinator/internal/http"
	"github.com/example/volunteer-coordinator/internal/logging"
	"github.com/example/volunteer-coordinator/internal/notification"
	"github.com/example/volunteer-coordinator/internal/persistence"
	"github.com/example/volunteer-coordinator/internal/persistence/sqlite"
)

func main() {
	logger := logging.New(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	userRepo := sqlite.NewUserRepository(storage)
	eventRepo := sqlite.NewEventRepository(storage)
	assignmentRepo := sqlite.NewAssignmentRepository(storage)
	swapRepo := sqlite.NewSwapRepository(storage)
	preferenceRepo := sqlite.NewPreferenceRepository(storage)
	sessionRepo := sqlite.NewSessionRepository(storage)

	var notifier application.Notifier = application.NopNotifier{}
	if cfg.PushEnabled() {
		sender := notification.NewWebPushSender(preferenceRepo, notification.VAPIDConfig{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subscriber: cfg.VAPIDSubscriber,
		}, logger)
		notifier = notification.NewDispatcher(sender, logger)
	} else {
		logger.Warn("VAPID keys not configured, push notifications disabled")
	}

	ledger := application.NewCapacityLedger(eventRepo, assignmentRepo)

	authService := application.NewAuthService(userRepo, userRepo, sessionRepo, nil, tokenGenerator, now, cfg.SessionTTL, logger)
	eventService := application.NewEventService(eventRepo, assignmentRepo, ledger, idGenerator, now, logger)
	assignmentService := application.NewAssignmentService(assignmentRepo, eventRepo, userRepo, notifier, idGenerator, now, logger)
	swapService := application.NewSwapService(swapRepo, assignmentRepo, eventRepo, userRepo, notifier, idGenerator, now, cfg.SwapTimeout, logger)
	preferenceService := application.NewPreferenceService(preferenceRepo, idGenerator, now, logger)
	calendarService := application.NewCalendarService(userRepo, assignmentRepo, eventRepo, tokenGenerator, now, logger)
	volunteerService := application.NewVolunteerService(userRepo, userRepo, assignmentRepo, eventRepo, nil, idGenerator, now, logger)
	reminderService := application.NewReminderService(preferenceRepo, assignmentRepo, eventRepo, notifier, cfg.ReminderPeriod, now, logger)

	if err := bootstrapSuperOrganizer(ctx, userRepo, userRepo, cfg, idGenerator, tokenGenerator, logger); err != nil {
		logger.Error("failed to bootstrap super organizer", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:        httptransport.NewAuthHandler(authService, logger),
		Events:      httptransport.NewEventHandler(eventService, logger),
		Assignments: httptransport.NewAssignmentHandler(assignmentService, logger),
		Swaps:       httptransport.NewSwapHandler(swapService, logger),
		Preferences: httptransport.NewPreferenceHandler(preferenceService, logger),
		Calendar:    httptransport.NewCalendarHandler(calendarService, logger),
		Volunteers:  httptransport.NewVolunteerHandler(volunteerService, logger),
		Reminders:   httptransport.NewReminderHandler(reminderService, cfg.ReminderSecret, logger),
		Session:     httptransport.RequireSession(authService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})

	scheduler := cron.New()
	spec := fmt.Sprintf("@every %s", cfg.ReminderPeriod)
	if _, err := scheduler.AddFunc(spec, func() {
		scanCtx, cancel := context.WithTimeout(context.Background(), cfg.ReminderPeriod)
		defer cancel()
		if _, err := reminderService.Scan(scanCtx); err != nil {
			logger.Error("reminder scan failed", "error", err)
		}
	}); err != nil {
		logger.Error("failed to schedule reminder scan", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("coordinator API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// bootstrapSuperOrganizer seeds the first account so a fresh deployment can
// be signed into. It only runs when configured and the user table is empty.
func bootstrapSuperOrganizer(
	ctx context.Context,
	users persistence.UserRepository,
	credentials persistence.CredentialRepository,
	cfg config.Config,
	idGenerator func() string,
	tokenGenerator func() string,
	logger *slog.Logger,
) error {
	if cfg.BootstrapEmail == "" || cfg.BootstrapPassword == "" {
		return nil
	}

	existing, err := users.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	hash, err := application.HashPassword(cfg.BootstrapPassword)
	if err != nil {
		return err
	}

	fullName := cfg.BootstrapFullName
	if fullName == "" {
		fullName = "Coordinator"
	}

	createdAt := time.Now()
	user := persistence.User{
		ID:            idGenerator(),
		Email:         cfg.BootstrapEmail,
		FullName:      fullName,
		Role:          string(application.RoleSuperOrganizer),
		CalendarToken: tokenGenerator(),
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return err
	}
	if err := credentials.UpsertCredential(ctx, persistence.Credential{
		UserID:       user.ID,
		PasswordHash: hash,
		UpdatedAt:    createdAt,
	}); err != nil {
		return err
	}

	logger.Info("bootstrapped super organizer account", "user_id", user.ID, "email", user.Email)
	return nil
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

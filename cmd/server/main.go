// Copyright 2026 The BloodLink Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bloodlink/bloodlink/internal/audit"
	"github.com/bloodlink/bloodlink/internal/config"
	"github.com/bloodlink/bloodlink/internal/identity"
	"github.com/bloodlink/bloodlink/internal/observability/logger"
	"github.com/bloodlink/bloodlink/internal/observability/metrics"
	"github.com/bloodlink/bloodlink/internal/observability/tracing"
	"github.com/bloodlink/bloodlink/internal/org"
	"github.com/bloodlink/bloodlink/internal/role"
	"github.com/bloodlink/bloodlink/internal/session"
	"github.com/bloodlink/bloodlink/internal/stepup"
	"github.com/bloodlink/bloodlink/internal/store/postgres"
	transportHTTP "github.com/bloodlink/bloodlink/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting bloodlink console")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Observability.Environment,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	orgRepo := postgres.NewOrgRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	stepupRepo := postgres.NewStepUpRepository(db)

	// Initialize helpers
	auditLogger := audit.NewSlogLogger()
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	// Initialize services
	identityService := identity.NewService(
		userRepo,
		passwordHasher,
		auditLogger,
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	)
	orgService := org.NewService(orgRepo, auditLogger)
	roleService := role.NewService(roleRepo, auditLogger)
	sessionService := session.NewService(
		sessionRepo,
		orgService,
		session.NewTokenIssuer(cfg.Auth.TokenSigningKey, cfg.Auth.TokenIssuer),
		auditLogger,
		meter,
		cfg.Auth.SessionLifetime,
		cfg.Auth.SessionIdle,
	)
	stepupService := stepup.NewService(
		stepupRepo,
		identityService,
		stepup.NewDevSender(),
		stepup.NewTokenIssuer(cfg.Auth.TokenSigningKey, cfg.Auth.TokenIssuer, cfg.StepUp.TokenTTL),
		auditLogger,
		meter,
		cfg.StepUp.VerificationTTL,
		cfg.StepUp.OTPLength,
	)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		identityService,
		sessionService,
		orgService,
		roleService,
		stepupService,
		auditLogger,
		meter,
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Scheduled cleanup of expired sessions and verifications
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.StepUp.CleanupSchedule, func() {
		if _, err := sessionService.CleanupExpired(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to clean up sessions", logger.Error(err))
		}
		if _, err := stepupService.CleanupExpired(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to clean up verifications", logger.Error(err))
		}
	}); err != nil {
		slog.Error("failed to schedule cleanup", logger.Error(err))
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", logger.Error(err))
	}

	slog.Info("server stopped")
}

// runMigrate applies the embedded schema to the configured database.
func runMigrate(cfg *config.Config) error {
	ctx := context.Background()

	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	slog.Info("schema applied")
	return nil
}

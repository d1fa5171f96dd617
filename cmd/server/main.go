package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"familytree/internal/config"
	"familytree/internal/database"
	"familytree/internal/handlers"
	"familytree/internal/logger"
	"familytree/internal/metrics"
	"familytree/internal/models"
	"familytree/internal/repository"
	"familytree/internal/security"
	"familytree/internal/service"
	"familytree/internal/storage"
)

func main() {
	cfg := config.Load()
	log := logger.New("familytree")

	db, err := database.Initialize(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()

	log.WithField("type", cfg.DatabaseType).Info("database connection established")

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}
	log.Info("migrations completed")

	m := metrics.New("familytree")

	// Repositories
	memberRepo := repository.NewMemberRepository(db)
	pendingRepo := repository.NewPendingRepository(db)
	updateRepo := repository.NewUpdateRequestRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	backupConfigRepo := repository.NewBackupConfigRepository(db)
	userRepo := repository.NewUserRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	broadcastRepo := repository.NewBroadcastRepository(db)
	photoRepo := repository.NewPhotoRepository(db)

	ctx := context.Background()

	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize email service")
	}
	if !emailService.IsEnabled() {
		log.Warn("email sending disabled, SES_FROM_EMAIL not set")
	}

	s3Store, err := storage.NewS3Store(ctx, cfg.AWSRegion, cfg.SnapshotS3Bucket)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize snapshot storage")
	}
	var uploader service.SnapshotUploader
	if s3Store != nil {
		uploader = s3Store
	}

	// Services
	memberService := service.NewMemberService(memberRepo, activityRepo, log)
	approvalService := service.NewApprovalService(pendingRepo, updateRepo, memberRepo, activityRepo, log)
	snapshotService := service.NewSnapshotService(snapshotRepo, memberRepo, backupConfigRepo, activityRepo, uploader, m, log)
	authService := service.NewAuthService(userRepo, inviteRepo, activityRepo, emailService, cfg.SessionDuration, log)
	broadcastService := service.NewBroadcastService(broadcastRepo, userRepo, activityRepo, emailService, log)
	adminService := service.NewAdminService(userRepo, inviteRepo, activityRepo, activityRepo, emailService, log)
	photoService := service.NewPhotoService(photoRepo, memberRepo)

	// Handlers
	limiter := security.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitMaxKeys)
	mw := handlers.NewMiddleware(authService, limiter, log)

	oauthProviders := handlers.BuildOAuthProviders(
		cfg.GoogleClientID, cfg.GoogleClientSecret,
		cfg.FacebookClientID, cfg.FacebookClientSecret,
		cfg.AppleClientID, cfg.AppleClientSecret)

	authHandler := handlers.NewAuthHandler(authService, oauthProviders, cfg.OAuthRedirectBaseURL, cfg.AppBaseURL, log)
	memberHandler := handlers.NewMemberHandler(memberService, log)
	approvalHandler := handlers.NewApprovalHandler(approvalService, log)
	snapshotHandler := handlers.NewSnapshotHandler(snapshotService, log)
	broadcastHandler := handlers.NewBroadcastHandler(broadcastService, log)
	adminHandler := handlers.NewAdminHandler(adminService, log)
	photoHandler := handlers.NewPhotoHandler(photoService, log)
	healthHandler := handlers.NewHealthHandler(db, log)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", healthHandler.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth
	mux.HandleFunc("POST /api/auth/register", mw.RateLimit(authHandler.Register))
	mux.HandleFunc("POST /api/auth/login", mw.RateLimit(authHandler.Login))
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/me", mw.RequireAuth(authHandler.Me))
	mux.HandleFunc("POST /api/auth/forgot-password", mw.RateLimit(authHandler.ForgotPassword))
	mux.HandleFunc("POST /api/auth/reset-password", mw.RateLimit(authHandler.ResetPassword))
	mux.HandleFunc("GET /api/auth/providers", authHandler.ListOAuthProviders)
	mux.HandleFunc("GET /api/auth/{provider}/start", authHandler.StartOAuth)
	mux.HandleFunc("GET /api/auth/{provider}/callback", authHandler.OAuthCallback)

	// Family tree
	mux.HandleFunc("GET /api/members", mw.RequireAuth(memberHandler.List))
	mux.HandleFunc("POST /api/members", mw.RequireCapability(models.CapManageMembers, memberHandler.Create))
	mux.HandleFunc("GET /api/members/{id}", mw.RequireAuth(memberHandler.Get))
	mux.HandleFunc("PUT /api/members/{id}", mw.RequireCapability(models.CapManageMembers, memberHandler.Update))
	mux.HandleFunc("GET /api/members/{id}/children", mw.RequireAuth(memberHandler.Children))
	mux.HandleFunc("GET /api/branches", mw.RequireAuth(memberHandler.Branches))
	mux.HandleFunc("GET /api/stats", mw.RequireAuth(memberHandler.Stats))

	// Pending members
	mux.HandleFunc("POST /api/pending", mw.RateLimit(mw.RequireAuth(approvalHandler.SubmitPending)))
	mux.HandleFunc("GET /api/admin/pending", mw.RequireCapability(models.CapApprovePendingMembers, approvalHandler.ListPending))
	mux.HandleFunc("GET /api/admin/pending/{id}", mw.RequireCapability(models.CapApprovePendingMembers, approvalHandler.GetPending))
	mux.HandleFunc("POST /api/admin/pending/{id}", mw.RequireCapability(models.CapApprovePendingMembers, approvalHandler.ReviewPending))

	// Update requests
	mux.HandleFunc("POST /api/update-requests", mw.RateLimit(mw.RequireAuth(approvalHandler.SubmitUpdateRequest)))
	mux.HandleFunc("GET /api/admin/update-requests", mw.RequireCapability(models.CapApprovePendingMembers, approvalHandler.ListUpdateRequests))
	mux.HandleFunc("GET /api/admin/update-requests/{id}", mw.RequireCapability(models.CapApprovePendingMembers, approvalHandler.GetUpdateRequest))
	mux.HandleFunc("POST /api/admin/update-requests/{id}", mw.RequireCapability(models.CapApprovePendingMembers, approvalHandler.ReviewUpdateRequest))

	// Snapshots and backups
	mux.HandleFunc("GET /api/admin/snapshots", mw.RequireCapability(models.CapManageSnapshots, snapshotHandler.List))
	mux.HandleFunc("POST /api/admin/snapshots", mw.RequireCapability(models.CapManageSnapshots, snapshotHandler.Create))
	mux.HandleFunc("GET /api/admin/snapshots/{id}", mw.RequireCapability(models.CapManageSnapshots, snapshotHandler.Get))
	mux.HandleFunc("DELETE /api/admin/snapshots/{id}", mw.RequireCapability(models.CapManageSnapshots, snapshotHandler.Delete))
	mux.HandleFunc("POST /api/admin/snapshots/{id}", mw.RequireCapability(models.CapRestoreSnapshot, snapshotHandler.Restore))
	mux.HandleFunc("GET /api/admin/snapshots/{id}/verify", mw.RequireCapability(models.CapManageSnapshots, snapshotHandler.Verify))
	mux.HandleFunc("GET /api/admin/backup-config", mw.RequireCapability(models.CapManageSnapshots, snapshotHandler.GetBackupConfig))
	mux.HandleFunc("PUT /api/admin/backup-config", mw.RequireCapability(models.CapManageSnapshots, snapshotHandler.UpdateBackupConfig))
	mux.HandleFunc("GET /api/backup/check", snapshotHandler.CheckBackup)
	mux.HandleFunc("POST /api/backup/check", snapshotHandler.RunBackup)

	// Broadcasts
	mux.HandleFunc("POST /api/broadcasts", mw.RequireCapability(models.CapSendBroadcasts, broadcastHandler.Create))
	mux.HandleFunc("GET /api/broadcasts", mw.RequireAuth(broadcastHandler.List))
	mux.HandleFunc("GET /api/broadcasts/{id}", mw.RequireAuth(broadcastHandler.Get))
	mux.HandleFunc("DELETE /api/broadcasts/{id}", mw.RequireCapability(models.CapSendBroadcasts, broadcastHandler.Delete))
	mux.HandleFunc("POST /api/broadcasts/{id}/send", mw.RequireCapability(models.CapSendBroadcasts, broadcastHandler.Send))
	mux.HandleFunc("POST /api/broadcasts/{id}/rsvp", mw.RequireAuth(broadcastHandler.RSVP))
	mux.HandleFunc("GET /api/broadcasts/{id}/rsvps", mw.RequireCapability(models.CapSendBroadcasts, broadcastHandler.ListRSVPs))
	mux.HandleFunc("GET /api/broadcasts/{id}/rsvps/summary", mw.RequireCapability(models.CapSendBroadcasts, broadcastHandler.RSVPSummary))

	// Photos
	mux.HandleFunc("POST /api/photos", mw.RequireAuth(photoHandler.Create))
	mux.HandleFunc("GET /api/photos", mw.RequireAuth(photoHandler.List))
	mux.HandleFunc("DELETE /api/photos/{id}", mw.RequireCapability(models.CapManageMembers, photoHandler.Delete))

	// Administration
	mux.HandleFunc("GET /api/admin/users", mw.RequireCapability(models.CapViewUsers, adminHandler.ListUsers))
	mux.HandleFunc("PUT /api/admin/users/{id}", mw.RequireCapability(models.CapManageUsers, adminHandler.UpdateUserRole))
	mux.HandleFunc("POST /api/admin/invites", mw.RequireCapability(models.CapInviteUsers, adminHandler.CreateInvite))
	mux.HandleFunc("GET /api/admin/invites", mw.RequireCapability(models.CapInviteUsers, adminHandler.ListInvites))
	mux.HandleFunc("DELETE /api/admin/invites/{id}", mw.RequireCapability(models.CapInviteUsers, adminHandler.RevokeInvite))
	mux.HandleFunc("GET /api/admin/activity", mw.RequireCapability(models.CapViewAuditLogs, adminHandler.ListActivity))

	handler := mw.Logging(m.Middleware(mux))

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan struct{})
	go runBackground(ctx, cfg, db, m, authService, snapshotService, broadcastService, log, stop)

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	close(stop)

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
}

// runBackground drives the periodic jobs: expired session cleanup, the
// automatic backup scheduler, and due broadcast dispatch.
func runBackground(ctx context.Context, cfg *config.Config, db *database.DB, m *metrics.Metrics,
	authService *service.AuthService, snapshotService *service.SnapshotService,
	broadcastService *service.BroadcastService, log *logger.Logger, stop <-chan struct{}) {

	backupTicker := time.NewTicker(cfg.BackupCheckInterval)
	defer backupTicker.Stop()
	sessionTicker := time.NewTicker(time.Hour)
	defer sessionTicker.Stop()
	dispatchTicker := time.NewTicker(time.Minute)
	defer dispatchTicker.Stop()
	statsTicker := time.NewTicker(15 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-backupTicker.C:
			if _, err := snapshotService.RunScheduledBackup(ctx); err != nil {
				log.WithError(err).Error("scheduled backup failed")
			}
		case <-sessionTicker.C:
			if n, err := authService.CleanupExpiredSessions(); err != nil {
				log.WithError(err).Warn("session cleanup failed")
			} else if n > 0 {
				log.WithField("removed", n).Info("expired sessions cleaned up")
			}
		case <-dispatchTicker.C:
			if err := broadcastService.DispatchDue(ctx); err != nil {
				log.WithError(err).Error("broadcast dispatch failed")
			}
		case <-statsTicker.C:
			m.RecordDBPoolStats(db.Stats())
		}
	}
}

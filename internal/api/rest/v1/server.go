// Package rest provides functionality for initializing a server.
package rest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/VSFLima/Byte-Capital/internal/api/rest/client"
	"github.com/VSFLima/Byte-Capital/internal/api/rest/v1/handlers"
	"github.com/VSFLima/Byte-Capital/internal/api/rest/v1/middleware"
	"github.com/VSFLima/Byte-Capital/internal/config"
	"github.com/VSFLima/Byte-Capital/internal/service/notifier/v1/notifier"
	"github.com/VSFLima/Byte-Capital/internal/service/secretary/v1/secretary"
	"github.com/VSFLima/Byte-Capital/internal/service/workflow/v1/workflow"
	"github.com/VSFLima/Byte-Capital/internal/storage/v1/inpsql"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

// InitServer returns a http.Server object ready to be listening and serving.
func InitServer(ctx context.Context, cfg *config.Config, log *zerolog.Logger, wg *sync.WaitGroup) (server *http.Server, err error) {
	// initialize secretary
	secretaryService, err := secretary.NewSecretaryService(cfg.SecretConfig)
	if err != nil {
		return nil, err
	}

	// initialize token handler
	tokenHandler, err := middleware.NewTokenHandler(secretaryService, cfg.SecretConfig)
	if err != nil {
		return nil, err
	}

	// initialize storage
	storage, err := inpsql.InitStorage(ctx, cfg.StorageConfig, log, wg)
	if err != nil {
		return nil, err
	}

	// initialize notification relay client and broker
	relayClient := client.InitClient(cfg.ServerConfig, cfg.NotifyConfig, log)
	notifierService := notifier.InitBroker(ctx, relayClient, log, wg, cfg.QueueConfig.WorkerNumber, cfg.QueueConfig.RetryNumber)
	notifierService.ListenAndProcess()

	// initialize main service
	mainService, err := workflow.InitService(storage, secretaryService, notifierService.Queue)
	if err != nil {
		return nil, err
	}

	// initialize admin access handler
	adminHandler, err := middleware.NewAdminHandler(mainService)
	if err != nil {
		return nil, err
	}

	// initialize handlers
	urlHandler, err := handlers.InitHandlers(mainService, cfg.ServerConfig, log)
	if err != nil {
		return nil, err
	}

	// initialize server and set routing
	r := chi.NewRouter()
	loginGroup := r.Group(nil)
	mainGroup := r.Group(nil)
	adminGroup := r.Group(nil)
	mainGroup.Use(tokenHandler.TokenHandle) // token authentication is not used for login/register/settings routes
	adminGroup.Use(tokenHandler.TokenHandle)
	adminGroup.Use(adminHandler.AdminHandle)
	loginGroup.Post("/api/user/register", urlHandler.HandleRegister())
	loginGroup.Post("/api/user/login", urlHandler.HandleLogin())
	loginGroup.Get("/api/settings", urlHandler.HandleGetSettings())
	mainGroup.Get("/api/user/balance", urlHandler.HandleGetBalance())
	mainGroup.Get("/api/user/requests", urlHandler.HandleGetRequests())
	mainGroup.Post("/api/user/deposits", urlHandler.HandleNewDeposit())
	mainGroup.Post("/api/user/withdrawals", urlHandler.HandleNewWithdrawal())
	mainGroup.Post("/api/user/balance/convert", urlHandler.HandleConvertBalance())
	mainGroup.Post("/api/user/profile/pix", urlHandler.HandleSetPixKey())
	mainGroup.Post("/api/user/support", urlHandler.HandleSupportMessage())
	adminGroup.Get("/api/admin/deposits", urlHandler.HandleGetPendingDeposits())
	adminGroup.Get("/api/admin/withdrawals", urlHandler.HandleGetPendingWithdrawals())
	adminGroup.Post("/api/admin/deposits/{requestID}/approve", urlHandler.HandleApproveDeposit())
	adminGroup.Post("/api/admin/withdrawals/{requestID}/approve", urlHandler.HandleApproveWithdrawal())
	adminGroup.Post("/api/admin/requests/{requestID}/deny", urlHandler.HandleDenyRequest())
	adminGroup.Post("/api/admin/requests/{requestID}/review", urlHandler.HandleMarkUnderReview())
	adminGroup.Post("/api/admin/users/{userID}/balance", urlHandler.HandleAdjustBalance())
	adminGroup.Get("/api/admin/users", urlHandler.HandleGetUsersSummary())
	adminGroup.Get("/api/admin/stats", urlHandler.HandleGetPlatformStats())
	adminGroup.Get("/api/admin/settings", urlHandler.HandleGetSettings())
	adminGroup.Put("/api/admin/settings", urlHandler.HandleUpdateSettings())

	srv := &http.Server{
		Addr:         cfg.ServerConfig.ServerAddress,
		Handler:      r,
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv, nil
}

// cmd/server/main.go
package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-backend/internal/controller"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/handler"
	"github.com/unclebandit/outreach-backend/internal/mail"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on OS environment variables")
	}

	conn, err := db.Connect()
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}
	sequenceRepo := &repository.SequenceRepository{DB: conn}
	deliveryRepo := &repository.DeliveryRepository{DB: conn}
	accountRepo := &repository.AccountRepository{DB: conn}

	campaignService := &service.CampaignService{
		Campaigns:  campaignRepo,
		Recipients: recipientRepo,
		Sequences:  sequenceRepo,
		Deliveries: deliveryRepo,
		Accounts:   accountRepo,
		Queue:      queue.NewStore(conn, logger),
		Sender:     &mail.MockSender{},
		Logger:     logger.Named("campaigns"),
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Campaigns:       campaignRepo,
	}
	campaignHandler := &handler.CampaignHandler{
		Campaigns:  campaignRepo,
		Deliveries: deliveryRepo,
	}

	r := chi.NewRouter()

	// Campaign lifecycle
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignHandler.ListCampaigns)
	r.Get("/campaigns/{id}", campaignHandler.GetCampaignWithStats)
	r.Get("/campaigns/{id}/validate", campaignController.Validate)
	r.Post("/campaigns/{id}/launch", campaignController.Launch)
	r.Post("/campaigns/{id}/pause", campaignController.Pause)
	r.Post("/campaigns/{id}/resume", campaignController.Resume)
	r.Post("/campaigns/{id}/cancel", campaignController.Cancel)
	r.Post("/campaigns/{id}/complete", campaignController.Complete)
	r.Delete("/campaigns/{id}", campaignController.Delete)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	logger.Info("server running", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/stan.go"

	"tessera/cmd/workers/jobs"
	"tessera/internal/config"
	"tessera/internal/database"
	"tessera/internal/external"
	"tessera/internal/logger"
	"tessera/internal/messaging"
	"tessera/internal/models"
	"tessera/internal/repository"
	"tessera/internal/service"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	log.Info("Starting workers service...")

	cfg.NATS.ClientID = "tessera-workers"

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}
	defer natsClient.Close()

	notifierClient := external.NewNotifierClient(cfg.Notifier)
	paymentClient := external.NewPaymentClient(cfg.Payment)

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, natsClient, paymentClient, nil, cfg.HoldTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	expirationJob := jobs.NewHoldExpirationJob(services.Registrations)
	expirationJob.Start(ctx)
	defer expirationJob.Stop()

	// Organizers get a notification for every confirmed payment. A
	// queue subscription keeps it single-delivery across worker
	// instances.
	sub, err := natsClient.SubscribeQueue(models.EventPaymentConfirmed, "workers",
		onPaymentConfirmed(ctx, notifierClient))
	if err != nil {
		logger.Fatal("Failed to subscribe to payment confirmations", "error", err)
	}
	defer sub.Close()

	log.Info("Workers service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Workers service stopped")
}

func onPaymentConfirmed(ctx context.Context, notifier *external.NotifierClient) stan.MsgHandler {
	return func(msg *stan.Msg) {
		log := logger.Get()

		var event models.PaymentConfirmedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Error("Failed to decode payment confirmed event", "error", err)
			return
		}

		notification := external.OrganizerNotification{
			RegistrationID: event.RegistrationID,
			UserID:         event.UserID,
			Subject:        "Payment received",
			Message:        fmt.Sprintf("Registration %d was paid and confirmed", event.RegistrationID),
		}

		if err := notifier.NotifyOrganizer(ctx, notification); err != nil {
			log.Error("Failed to notify organizer",
				"error", err, "registration_id", event.RegistrationID)
			return
		}

		log.Info("Organizer notified", "registration_id", event.RegistrationID)
	}
}

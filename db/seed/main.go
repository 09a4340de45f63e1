package main

import (
	"context"
	"time"

	"github.com/onurcolak/future-message-service/environments"
	"github.com/onurcolak/future-message-service/internal/domain"
	"github.com/onurcolak/future-message-service/internal/repository"
	"github.com/onurcolak/future-message-service/internal/service"
	"github.com/onurcolak/future-message-service/pkg/database"
	"github.com/onurcolak/future-message-service/pkg/logger"
)

// Seeds demo messages into the MySQL store through the engine, so every
// record carries a consistent audit log. Host fields are never touched.
func main() {
	cfg := environments.Load()
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	db, err := database.NewMySQLDB(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	defer func() {
		if err := db.Close(); err != nil {
			logger.Errorf("Failed to close database: %v", err)
		}
	}()

	if err := database.RunMigrations(db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	svc := service.NewMessageService(repository.NewSettingsRepository(db), nil, service.Config{
		StoreKey:         cfg.Store.Key,
		StoreTimeout:     cfg.Store.Timeout,
		MaxContentLength: cfg.Message.MaxContentLength,
	})

	ctx := context.Background()
	if err := svc.Load(ctx); err != nil {
		logger.Fatalf("Failed to load existing messages: %v", err)
	}

	admin := domain.Actor{ID: "1", Name: "Admin Demo"}
	now := time.Now().UTC()

	seeds := []service.CreateInput{
		{Entity: domain.EntityRef{Type: domain.EntityLead, ID: 1001}, Text: "Olá! Passando para lembrar da nossa reunião amanhã.", ScheduledAt: now.Add(2 * time.Hour), Actor: admin},
		{Entity: domain.EntityRef{Type: domain.EntityLead, ID: 1001}, Text: "Conseguiu avaliar a proposta que enviamos?", ScheduledAt: now.Add(48 * time.Hour), Actor: admin},
		{Entity: domain.EntityRef{Type: domain.EntityContact, ID: 2001}, Text: "Feliz aniversário! 🎉", ScheduledAt: now.Add(24 * time.Hour), Actor: admin},
		{Entity: domain.EntityRef{Type: domain.EntityContact, ID: 2001}, Text: "Seu pedido foi enviado.", ScheduledAt: now.Add(72 * time.Hour), Actor: admin},
	}

	created := make([]*domain.ScheduledMessage, 0, len(seeds))
	for _, in := range seeds {
		msg, err := svc.Create(ctx, in)
		if err != nil {
			logger.Fatalf("Failed to seed message for %s %d: %v", in.Entity.Type, in.Entity.ID, err)
		}
		created = append(created, msg)
	}

	if _, err := svc.Edit(ctx, created[1].ID, service.EditInput{
		Text:        "Conseguiu avaliar a proposta? Posso ajudar com alguma dúvida.",
		ScheduledAt: now.Add(50 * time.Hour),
		Actor:       admin,
	}); err != nil {
		logger.Fatalf("Failed to edit seeded message: %v", err)
	}

	if _, err := svc.Cancel(ctx, created[3].ID, admin); err != nil {
		logger.Fatalf("Failed to cancel seeded message: %v", err)
	}

	stats := svc.Stats()
	logger.Infof("Seed completed successfully (%d messages, %d scheduled, %d cancelled)", stats.Total, stats.Scheduled, stats.Cancelled)
}

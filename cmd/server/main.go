package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/train-ticket-market/internal/catalog"
	"github.com/iliyamo/train-ticket-market/internal/config"
	"github.com/iliyamo/train-ticket-market/internal/database"
	"github.com/iliyamo/train-ticket-market/internal/engine"
	"github.com/iliyamo/train-ticket-market/internal/handler"
	"github.com/iliyamo/train-ticket-market/internal/inventory"
	"github.com/iliyamo/train-ticket-market/internal/ledger"
	"github.com/iliyamo/train-ticket-market/internal/model"
	"github.com/iliyamo/train-ticket-market/internal/payment"
	"github.com/iliyamo/train-ticket-market/internal/queue"
	"github.com/iliyamo/train-ticket-market/internal/repository"
	"github.com/iliyamo/train-ticket-market/internal/router"
)

func main() {
	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	trainRepo := repository.NewTrainRepo(db)
	ticketRepo := repository.NewTicketRepo(db)
	userRepo := repository.NewUserRepo(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Seed the in-memory engines from the durable store.  After this point
	// the engines own all contention; the store only records outcomes.
	trains, err := trainRepo.LoadAll(ctx)
	if err != nil {
		log.Fatalf("load trains: %v", err)
	}
	fares, err := ticketRepo.LoadFares(ctx)
	if err != nil {
		log.Fatalf("load fares: %v", err)
	}
	tickets, err := ticketRepo.LoadTickets(ctx)
	if err != nil {
		log.Fatalf("load tickets: %v", err)
	}
	users, err := userRepo.LoadAll(ctx)
	if err != nil {
		log.Fatalf("load users: %v", err)
	}

	inv := inventory.New()
	for _, f := range fares {
		inv.Add(inventory.Key{TrainID: f.TrainID, Class: f.Class}, f.AvailableAmount, model.Money(f.UnitPriceCents))
	}
	led := ledger.New()
	for _, t := range tickets {
		if err := led.Add(t); err != nil {
			log.Fatalf("seed ticket %d: %v", t.ID, err)
		}
	}
	lastBill, err := ticketRepo.MaxBillID(ctx)
	if err != nil {
		log.Fatalf("load bill sequence: %v", err)
	}
	led.SeedBillSequence(lastBill)

	userIndex := make(map[uint64]model.User, len(users))
	for _, u := range users {
		userIndex[u.ID] = u
	}

	// The payment gateway is external when PAYMENT_URL is set; without it
	// every authorization succeeds, which suits local development.
	var gateway engine.Gateway = engine.InProcessGateway{}
	if cfg.PaymentURL != "" {
		gateway = payment.NewHTTPGateway(cfg.PaymentURL, cfg.PaymentTimeout)
	}

	var policy engine.RefundPolicy = engine.FullRefund{}
	if cfg.RefundPolicy == "flat_fee" {
		policy = engine.FlatFeeRefund{Fee: model.Money(cfg.RefundFeeCents)}
	}

	booker := engine.NewBooker(inv, led, gateway, nil)
	canceler := engine.NewCanceler(inv, led, gateway, policy, nil)
	cat := catalog.New(trains, led, inv)
	api := handler.NewAPI(cat, booker, canceler, inv, userIndex, ticketRepo)

	rdb := config.NewRedisClient() // nil when Redis is unreachable; middleware degrades

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAPI(e, api, cfg.JWTSecret, rdb)

	go queue.StartTicketConsumer() // background event recorder; reconnects on its own

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, trains=%d, tickets=%d)", addr, cfg.Env, len(trains), len(tickets))
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

package main // Entry point package

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/clock"
	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/router"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

func main() {
	// .env is optional; real deployments set variables directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it the API still works, just without
	// rate limiting and response caching.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}

	seats := repository.NewSeatRepo(db)
	showtimes := repository.NewShowtimeRepo(db)
	bookings := repository.NewBookingRepo(db)
	coupons := repository.NewCouponRepo(db)

	clk := clock.NewSystem()
	sweeper := service.NewSweeper(seats, clk)
	manager := service.NewReservationManager(seats, clk,
		service.WithHoldTTL(time.Duration(cfg.HoldTTLMin)*time.Minute))
	ledger := service.NewCouponLedger(coupons, bookings, clk)
	orchestrator := service.NewBookingOrchestrator(seats, bookings, clk,
		service.WithPaymentBridge(queue.NewPaymentBridge()),
		service.WithCouponLedger(ledger),
		service.WithConfirmedNotifier(queue.NewConfirmedPublisher()),
		service.WithPaymentWindow(time.Duration(cfg.PaymentWindowMin)*time.Minute))

	reservationHandler := handler.NewReservationHandler(showtimes, seats, manager, sweeper, clk)
	bookingHandler := handler.NewBookingHandler(orchestrator, showtimes)
	couponHandler := handler.NewCouponHandler(ledger)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterPublic(e, reservationHandler, rdb)
	router.RegisterCustomer(e, reservationHandler, bookingHandler, couponHandler, cfg.JWTSecret, rdb)
	router.RegisterPaymentCallback(e, bookingHandler)

	// Background consumers reconnect on their own; a startup failure only
	// means the broker is not up yet.
	go func() {
		if err := queue.StartPaymentOutcomeConsumer(orchestrator); err != nil {
			log.Printf("payment outcome consumer stopped: %v", err)
		}
	}()
	go func() {
		if err := queue.StartBookingLogConsumer(); err != nil {
			log.Printf("booking log consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check, used
// by load balancers and monitoring to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers unauthenticated browse endpoints.  Guests can
// list upcoming showtimes and inspect per-seat availability before signing
// in to place a hold.  The showtime listing sits behind the Redis response
// cache when a client is available; the seat map is never cached because
// its whole point is freshness.
func RegisterPublic(e *echo.Echo, h *handler.ReservationHandler, rdb *redis.Client) {
	if rdb != nil {
		cacheCfg := config.LoadCacheConfig()
		e.GET("/v1/showtimes", h.ListShowtimes, middleware.NewRedisCache(cacheCfg, rdb))
	} else {
		e.GET("/v1/showtimes", h.ListShowtimes)
	}
	e.GET("/v1/showtimes/:id/seats", h.ListSeats)
}

// RegisterCustomer registers customer-scoped endpoints under /v1.  All
// routes require a bearer token minted by the identity service; the token
// subject becomes the caller's user ID.  Write endpoints additionally go
// through the distributed token-bucket rate limiter so a single client
// cannot hammer the seat inventory.
func RegisterCustomer(e *echo.Echo, rh *handler.ReservationHandler, bh *handler.BookingHandler, ch *handler.CouponHandler, jwtSecret string, rdb *redis.Client) {
	g := e.Group("/v1", middleware.Identity(jwtSecret))
	if rdb != nil {
		g.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	}

	// Seat holds: place, release, extend.
	g.POST("/showtimes/:id/hold", rh.HoldSeats)
	g.DELETE("/showtimes/:id/hold", rh.ReleaseSeats)
	g.PATCH("/showtimes/:id/hold", rh.ExtendHolds)

	// Bookings are created from live holds and settle through the payment
	// callback registered below.
	g.POST("/showtimes/:id/bookings", bh.CreateBooking)
	g.GET("/my-bookings", bh.ListMyBookings)
	g.GET("/bookings/:id", bh.GetBooking)

	// Coupons attach to pending bookings and can be detached again while
	// the booking is still open.
	g.POST("/bookings/:id/coupon", ch.ApplyCoupon)
	g.DELETE("/bookings/:id/coupon", ch.RevokeCoupon)
	g.GET("/my-coupons", ch.ListMyCoupons)
}

// RegisterPaymentCallback registers the synchronous finalize endpoint used
// by the payment provider's webhook.  The usual settlement path is the
// payment.outcomes queue; this route exists for providers that can only
// deliver outcomes over HTTP.  It is deliberately outside the customer
// group: the caller is the provider, not a ticket buyer.
func RegisterPaymentCallback(e *echo.Echo, bh *handler.BookingHandler) {
	e.POST("/v1/bookings/:id/finalize", bh.FinalizeBooking)
}

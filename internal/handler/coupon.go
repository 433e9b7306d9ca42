package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// CouponHandler applies and revokes coupons on bookings and lists the
// caller's redeemable coupons.
type CouponHandler struct {
	Ledger *service.CouponLedger
}

// NewCouponHandler constructs a CouponHandler.  The ledger must be
// non-nil.
func NewCouponHandler(ledger *service.CouponLedger) *CouponHandler {
	if ledger == nil {
		panic("nil ledger passed to NewCouponHandler")
	}
	return &CouponHandler{Ledger: ledger}
}

// couponRequest names a coupon either by ID or by customer-facing code.
type couponRequest struct {
	CouponID uint64 `json:"coupon_id,omitempty"`
	Code     string `json:"code,omitempty"`
}

// resolveCoupon maps the request body onto a coupon ID.
func (h *CouponHandler) resolveCoupon(c echo.Context, body couponRequest) (uint64, error) {
	if body.CouponID != 0 {
		return body.CouponID, nil
	}
	if body.Code == "" {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "coupon_id or code is required")
	}
	coupon, err := h.Ledger.ResolveCode(c.Request().Context(), body.Code)
	if err != nil {
		return 0, err
	}
	return coupon.ID, nil
}

// ApplyCoupon handles POST /v1/bookings/:id/coupon.  Exactly one
// application per (booking, coupon) pair can succeed; the losing side
// of a concurrent double application receives a conflict.
func (h *CouponHandler) ApplyCoupon(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body couponRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	couponID, err := h.resolveCoupon(c, body)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return c.JSON(httpErr.Code, echo.Map{"error": httpErr.Message})
		}
		return writeServiceError(c, err)
	}
	applied, err := h.Ledger.Apply(c.Request().Context(), bookingID, userID, couponID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":     applied.BookingID,
		"coupon_id":      applied.CouponID,
		"discount_cents": applied.DiscountCents,
	})
}

// RevokeCoupon handles DELETE /v1/bookings/:id/coupon.  Revoking a
// coupon that was never applied, or was already reverted, succeeds
// without mutation.
func (h *CouponHandler) RevokeCoupon(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body couponRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	couponID, err := h.resolveCoupon(c, body)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return c.JSON(httpErr.Code, echo.Map{"error": httpErr.Message})
		}
		return writeServiceError(c, err)
	}
	if err := h.Ledger.Revoke(c.Request().Context(), bookingID, couponID, userID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMyCoupons handles GET /v1/my-coupons.  It returns the caller's
// unused coupons that are active and inside their validity window.
func (h *CouponHandler) ListMyCoupons(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Ledger.ListUnused(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load coupons"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": itemsOrEmpty(items)})
}

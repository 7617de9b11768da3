package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/booking"
	"github.com/iliyamo/class-booking/internal/middleware"
)

// ReserveHandler backs the HTML booking form: it puts the chosen session in
// the visitor's cart and redirects to checkout, or back to the booking
// page with a notice.
type ReserveHandler struct {
	wf          *booking.Workflow
	checkoutURL string
	bookingURL  string
	cartTTL     time.Duration
	secure      bool
	log         *zap.Logger
}

// NewReserveHandler constructs a ReserveHandler.  secure marks the cart
// cookie Secure (production over TLS).
func NewReserveHandler(wf *booking.Workflow, checkoutURL, bookingURL string, cartTTL time.Duration, secure bool, log *zap.Logger) *ReserveHandler {
	return &ReserveHandler{wf: wf, checkoutURL: checkoutURL, bookingURL: bookingURL, cartTTL: cartTTL, secure: secure, log: log}
}

// Reserve handles POST /reserve (form fields session_id, persons).
func (h *ReserveHandler) Reserve(c echo.Context) error {
	var cmd booking.AddLineCmd
	if err := c.Bind(&cmd); err != nil || cmd.SessionID == 0 {
		return h.back(c, cmd.SessionID, "Invalid session.")
	}
	id := h.cartCookie(c)
	if _, err := h.wf.Reserve(c.Request().Context(), id, cmd); err != nil {
		de := booking.AsError(err)
		if de.Status >= http.StatusInternalServerError {
			h.log.Error("reserve failed", zap.Uint64("session_id", cmd.SessionID), zap.Error(err))
			return h.back(c, cmd.SessionID, "Something went wrong. Please try again.")
		}
		return h.back(c, cmd.SessionID, de.Message)
	}
	return c.Redirect(http.StatusSeeOther, h.checkoutURL)
}

// cartCookie returns the visitor's cart id, issuing a new one if needed.
func (h *ReserveHandler) cartCookie(c echo.Context) string {
	if ck, err := c.Cookie(middleware.CartCookie); err == nil {
		if _, err := uuid.Parse(ck.Value); err == nil {
			return ck.Value
		}
	}
	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     middleware.CartCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.cartTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (h *ReserveHandler) back(c echo.Context, sessionID uint64, notice string) error {
	target, err := url.Parse(h.bookingURL)
	if err != nil {
		target = &url.URL{Path: "/"}
	}
	q := target.Query()
	q.Set("notice", notice)
	if sessionID != 0 {
		q.Set("session_id", strconv.FormatUint(sessionID, 10))
	}
	target.RawQuery = q.Encode()
	return c.Redirect(http.StatusSeeOther, target.String())
}

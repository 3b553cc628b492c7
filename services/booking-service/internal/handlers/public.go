package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/slotledger/libs/httpx"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/ledger"
)

// PublicHandler serves the customer-facing availability and booking endpoints.
type PublicHandler struct {
	resolver *availability.Resolver
	ledger   *ledger.Service
	logger   *slog.Logger
}

func NewPublicHandler(resolver *availability.Resolver, ledgerSvc *ledger.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{resolver: resolver, ledger: ledgerSvc, logger: logger}
}

func (h *PublicHandler) Register(mux *http.ServeMux, wrap httpx.Middleware) {
	if wrap == nil {
		wrap = func(next http.Handler) http.Handler { return next }
	}
	mux.Handle("/api/v1/public/slots", wrap(http.HandlerFunc(h.Slots)))
	mux.Handle("/api/v1/public/book", wrap(http.HandlerFunc(h.Book)))
}

type slotsResponse struct {
	availability.Result
	Timezone string `json:"timezone"`
}

func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		badRequest(w, "date is required")
		return
	}
	res, err := h.resolver.AvailableSlots(r.Context(), date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{Result: res, Timezone: res.AnchoredAt.Location().String()})
}

func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req ledger.CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(idemKey) > 200 {
		badRequest(w, "Idempotency-Key is too long")
		return
	}

	res, err := h.ledger.Create(r.Context(), req, idemKey)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, res)
}

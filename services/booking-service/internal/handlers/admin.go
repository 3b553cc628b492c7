package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/slotledger/libs/httpx"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/exceptions"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/reconcile"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/schedule"
)

// Sweeper runs one reconciliation pass on demand.
type Sweeper interface {
	SweepOnce(ctx context.Context) (reconcile.Report, error)
}

// AdminHandler serves schedule, exception and booking management.
type AdminHandler struct {
	schedule   *schedule.Service
	exceptions *exceptions.Service
	ledger     *ledger.Service
	sweeper    Sweeper
	logger     *slog.Logger
}

func NewAdminHandler(scheduleSvc *schedule.Service, exceptionSvc *exceptions.Service, ledgerSvc *ledger.Service, sweeper Sweeper, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		schedule:   scheduleSvc,
		exceptions: exceptionSvc,
		ledger:     ledgerSvc,
		sweeper:    sweeper,
		logger:     logger,
	}
}

func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/admin/schedule", h.Schedule)
	mux.HandleFunc("/api/v1/admin/date-exceptions", h.DateExceptions)
	mux.HandleFunc("/api/v1/admin/date-exceptions/toggle", h.ToggleDateException)
	mux.HandleFunc("/api/v1/admin/date-exceptions/remove-slot", h.RemoveBlockedSlot)
	mux.HandleFunc("/api/v1/admin/bookings", h.Bookings)
	mux.HandleFunc("/api/v1/admin/bookings/status", h.BookingStatus)
	mux.HandleFunc("/api/v1/admin/reconcile", h.Reconcile)
}

type updateDayRequest struct {
	Day       string   `json:"day"`
	IsWorking bool     `json:"is_working"`
	TimeSlots []string `json:"time_slots"`
}

type scheduleResponse struct {
	Days []model.DaySchedule `json:"days"`
}

func (h *AdminHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		week, err := h.schedule.GetSchedule(r.Context())
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, scheduleResponse{Days: week.Ordered()})
	case http.MethodPut:
		var req updateDayRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
		ds, err := h.schedule.UpdateDay(r.Context(), req.Day, req.IsWorking, req.TimeSlots)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, ds)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

type createExceptionRequest struct {
	Date      string   `json:"date"`
	Reason    string   `json:"reason"`
	TimeSlots []string `json:"time_slots"`
}

type exceptionListResponse struct {
	Items []model.DateException `json:"items"`
}

func (h *AdminHandler) DateExceptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active_only"))
		items, err := h.exceptions.List(r.Context(), activeOnly)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		if items == nil {
			items = []model.DateException{}
		}
		httpx.WriteJSON(w, http.StatusOK, exceptionListResponse{Items: items})
	case http.MethodPost:
		var req createExceptionRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
		exc, err := h.exceptions.Create(r.Context(), req.Date, req.Reason, req.TimeSlots)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, exc)
	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			badRequest(w, "id is required")
			return
		}
		if err := h.exceptions.Delete(r.Context(), id); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

type idRequest struct {
	ID string `json:"id"`
}

func (h *AdminHandler) ToggleDateException(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req idRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	exc, err := h.exceptions.Toggle(r.Context(), strings.TrimSpace(req.ID))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, exc)
}

type removeSlotRequest struct {
	ID       string `json:"id"`
	TimeSlot string `json:"time_slot"`
}

func (h *AdminHandler) RemoveBlockedSlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req removeSlotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	exc, err := h.exceptions.RemoveSlot(r.Context(), strings.TrimSpace(req.ID), req.TimeSlot)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, exc)
}

type bookingListResponse struct {
	Items []model.Booking `json:"items"`
}

func (h *AdminHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		if id := strings.TrimSpace(q.Get("id")); id != "" {
			b, err := h.ledger.Get(r.Context(), id)
			if err != nil {
				writeServiceError(w, r, h.logger, err)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, b)
			return
		}
		filter := model.BookingFilter{Date: strings.TrimSpace(q.Get("date"))}
		if raw := strings.TrimSpace(q.Get("status")); raw != "" {
			status, err := model.ParseStatus(raw)
			if err != nil {
				writeServiceError(w, r, h.logger, err)
				return
			}
			filter.Status = status
		}
		if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > 500 {
				badRequest(w, "limit must be between 1 and 500")
				return
			}
			filter.Limit = n
		}
		items, err := h.ledger.List(r.Context(), filter)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, bookingListResponse{Items: items})
	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			badRequest(w, "id is required")
			return
		}
		if _, err := h.ledger.Delete(r.Context(), id); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

type statusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *AdminHandler) BookingStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	b, err := h.ledger.UpdateStatus(r.Context(), strings.TrimSpace(req.ID), req.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if h.sweeper == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "RECONCILE_DISABLED", "reconciliation is not configured")
		return
	}
	report, err := h.sweeper.SweepOnce(r.Context())
	if errors.Is(err, reconcile.ErrLocked) {
		httpx.WriteError(w, http.StatusConflict, "RECONCILE_RUNNING", err.Error())
		return
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

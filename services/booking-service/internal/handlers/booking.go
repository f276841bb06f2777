package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/flow"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/payment"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/validation"
)

type BookingHandler struct {
	flow    *flow.Controller
	store   *storage.Store
	catalog *catalog.Catalog
	logger  *slog.Logger
}

func NewBookingHandler(ctrl *flow.Controller, store *storage.Store, cat *catalog.Catalog, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		flow:    ctrl,
		store:   store,
		catalog: cat,
		logger:  logger,
	}
}

type catalogResponse struct {
	Services []catalog.Entry `json:"services"`
}

type createBookingResponse struct {
	Token     string     `json:"token"`
	BookingID string     `json:"bookingId"`
	Amount    int64      `json:"amount"`
	State     flow.State `json:"state"`
}

type validationErrorResponse struct {
	Errors map[string]string `json:"errors"`
}

type startPaymentRequest struct {
	Mode payment.Mode `json:"mode"`
}

func (h *BookingHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalogResponse{Services: h.catalog.All()})
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in validation.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	sess := flow.NewSession()
	res, err := h.flow.Submit(r.Context(), sess, in, language(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !res.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, validationErrorResponse{Errors: res.Errors})
		return
	}

	v := sess.View()
	writeJSON(w, http.StatusCreated, createBookingResponse{
		Token:     v.Token,
		BookingID: v.BookingID,
		Amount:    v.Amount,
		State:     v.State,
	})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.store.GetByToken(r.Context(), mux.Vars(r)["token"])
	if !ok {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *BookingHandler) StartPayment(w http.ResponseWriter, r *http.Request) {
	req := startPaymentRequest{Mode: payment.ModeAll}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = payment.ModeAll
	}
	if !req.Mode.Valid() {
		http.Error(w, "mode must be all or single", http.StatusBadRequest)
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	co, err := h.flow.StartPayment(r.Context(), sess, req.Mode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, co)
}

func (h *BookingHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var cb payment.Callback
	if !decodeJSON(w, r, &cb) {
		return
	}
	cb.Verified = false

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	v, err := h.flow.Resolve(r.Context(), sess, cb)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *BookingHandler) Retry(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.flow.Retry(r.Context(), sess); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (h *BookingHandler) Back(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.flow.Back(r.Context(), sess); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (h *BookingHandler) session(w http.ResponseWriter, r *http.Request) (*flow.Session, bool) {
	sess, err := h.flow.Resume(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return sess, true
}

func (h *BookingHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("booking request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		h.logger.Warn("booking request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	http.Error(w, msg, status)
}

// language picks the message catalog from ?lang= or the first Accept-Language tag.
func language(r *http.Request) string {
	if lang := strings.TrimSpace(r.URL.Query().Get("lang")); lang != "" {
		return strings.ToLower(lang)
	}
	tag, _, _ := strings.Cut(r.Header.Get("Accept-Language"), ",")
	tag, _, _ = strings.Cut(tag, ";")
	base, _, _ := strings.Cut(strings.TrimSpace(tag), "-")
	return strings.ToLower(base)
}

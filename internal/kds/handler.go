package kds

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/bblatev/bjs-menu-sub004/pkg/enums/stationtype"
	"github.com/bblatev/bjs-menu-sub004/pkg/enums/ticketstatus"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const MaxBodyBytes = 1 << 20

type HandlerDeps struct {
	Store       *VenueStore
	Registry    *Registry
	Router      *Router
	Lifecycle   *Lifecycle
	Monitor     *Monitor
	Expo        *Expo
	Performance *Performance
	Stream      *Broadcaster
}

type Handler struct {
	deps   HandlerDeps
	config *aqm.Config
	logger aqm.Logger
	tlm    *telemetry.HTTP
}

func NewHandler(deps HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		deps:   deps,
		config: config,
		logger: logger,
		tlm:    telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/venues/{venueID}", func(r chi.Router) {
		r.Route("/stations", func(r chi.Router) {
			r.Get("/", h.ListStations)
			r.Post("/", h.UpsertStation)
			r.Post("/defaults", h.EnsureDefaultStations)
			r.Patch("/{code}", h.UpdateStation)
			r.Get("/{code}/display", h.StationDisplay)
		})
		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", h.ListTickets)
			r.Post("/", h.CreateTickets)
			r.Get("/{code}", h.GetTicket)
			r.Patch("/{code}/start", h.StartTicket)
			r.Patch("/{code}/bump", h.BumpTicket)
			r.Patch("/{code}/recall", h.RecallTicket)
			r.Patch("/{code}/void", h.VoidTicket)
		})
		r.Post("/orders/{orderID}/fire", h.FireCourse)
		r.Get("/alerts", h.Alerts)
		r.Get("/overview", h.Overview)
		r.Get("/expo", h.ExpoDisplay)
		r.Get("/metrics", h.Metrics)
		if h.deps.Stream != nil {
			r.Get("/events", h.deps.Stream.ServeHTTP)
		}
	})
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

func venueIDParam(r *http.Request) (VenueID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "venueID"))
	return id, err == nil
}

// respondDomainError maps the error taxonomy onto HTTP statuses. Unknown
// errors stay opaque 500s.
func respondDomainError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		aqm.RespondError(w, http.StatusNotFound, msg)
	case errors.Is(err, ErrAlreadyBumped), errors.Is(err, ErrInvalidTransition):
		aqm.RespondError(w, http.StatusConflict, msg)
	case errors.Is(err, ErrRouting):
		aqm.RespondError(w, http.StatusUnprocessableEntity, msg)
	default:
		aqm.RespondError(w, http.StatusInternalServerError, msg)
	}
}

func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListStations")
	defer finish()

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"stations": h.deps.Registry.Stations(venueID),
	}, nil)
}

func (h *Handler) UpsertStation(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpsertStation")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	var payload struct {
		Code               string   `json:"code"`
		Name               string   `json:"name"`
		Type               string   `json:"type"`
		Categories         []string `json:"categories"`
		AvgCookTimeMinutes int      `json:"avg_cook_time_minutes"`
		MaxCapacity        int      `json:"max_capacity"`
	}
	if !h.decodeBody(w, r, &payload) {
		return
	}
	if payload.Code == "" {
		aqm.RespondError(w, http.StatusBadRequest, "Station code is required")
		return
	}
	stype := stationtype.ByCode(payload.Type)
	if stype == nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid station type")
		return
	}

	station, err := h.deps.Registry.GetOrCreate(ctx, venueID, payload.Code, payload.Name, *stype, payload.Categories, payload.AvgCookTimeMinutes, payload.MaxCapacity)
	if err != nil {
		log.Errorf("cannot upsert station: %v", err)
		respondDomainError(w, err, "Could not upsert station")
		return
	}

	aqm.Respond(w, http.StatusOK, station, nil)
}

func (h *Handler) EnsureDefaultStations(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.EnsureDefaultStations")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	if err := h.deps.Registry.EnsureDefaults(ctx, venueID); err != nil {
		log.Errorf("cannot seed default stations: %v", err)
		respondDomainError(w, err, "Could not seed default stations")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"stations": h.deps.Registry.Stations(venueID),
	}, nil)
}

func (h *Handler) UpdateStation(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateStation")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	var upd StationUpdate
	if !h.decodeBody(w, r, &upd) {
		return
	}
	if upd.Type != nil && !upd.Type.Valid() {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid station type")
		return
	}

	station, err := h.deps.Registry.Update(ctx, venueID, chi.URLParam(r, "code"), upd)
	if err != nil {
		log.Errorf("cannot update station: %v", err)
		respondDomainError(w, err, "Could not update station")
		return
	}

	aqm.Respond(w, http.StatusOK, station, nil)
}

func (h *Handler) StationDisplay(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.StationDisplay")
	defer finish()
	log := h.log(r)

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	display, err := h.deps.Monitor.StationDisplay(venueID, chi.URLParam(r, "code"))
	if err != nil {
		log.Errorf("cannot build station display: %v", err)
		respondDomainError(w, err, "Could not build station display")
		return
	}

	aqm.Respond(w, http.StatusOK, display, nil)
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListTickets")
	defer finish()

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	stationCode := r.URL.Query().Get("station")
	var status *ticketstatus.Status
	if statusCode := r.URL.Query().Get("status"); statusCode != "" {
		status = ticketstatus.ByCode(statusCode)
		if status == nil {
			aqm.RespondError(w, http.StatusBadRequest, "Invalid ticket status")
			return
		}
	}

	tickets := h.deps.Store.TicketsWhere(venueID, func(t *Ticket) bool {
		if stationCode != "" && t.StationCode != stationCode {
			return false
		}
		if status != nil && t.Status != *status {
			return false
		}
		return true
	})

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"tickets": tickets,
	}, nil)
}

func (h *Handler) CreateTickets(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateTickets")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	var payload struct {
		OrderID     string       `json:"order_id"`
		Items       []TicketItem `json:"items"`
		TableNumber string       `json:"table_number"`
		ServerName  string       `json:"server_name"`
		IsRush      bool         `json:"is_rush"`
		Notes       string       `json:"notes"`
	}
	if !h.decodeBody(w, r, &payload) {
		return
	}
	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	if len(payload.Items) == 0 {
		aqm.RespondError(w, http.StatusBadRequest, "Order has no items")
		return
	}

	result, err := h.deps.Router.CreateTickets(ctx, venueID, orderID, payload.Items, payload.TableNumber, payload.ServerName, payload.IsRush, payload.Notes)
	if err != nil {
		log.Errorf("cannot create tickets: %v", err)
		respondDomainError(w, err, "Could not create tickets")
		return
	}

	aqm.Respond(w, http.StatusCreated, result, nil)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetTicket")
	defer finish()
	log := h.log(r)

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	ticket, err := h.deps.Store.Ticket(venueID, chi.URLParam(r, "code"))
	if err != nil {
		log.Errorf("cannot find ticket: %v", err)
		respondDomainError(w, err, "Ticket not found")
		return
	}

	aqm.Respond(w, http.StatusOK, ticket, nil)
}

func (h *Handler) StartTicket(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Handler.StartTicket", func(ctx requestContext) (*Ticket, error) {
		return h.deps.Lifecycle.Start(ctx.ctx, ctx.venueID, ctx.code, ctx.staffID)
	})
}

func (h *Handler) BumpTicket(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Handler.BumpTicket", func(ctx requestContext) (*Ticket, error) {
		return h.deps.Lifecycle.Bump(ctx.ctx, ctx.venueID, ctx.code, ctx.staffID)
	})
}

func (h *Handler) RecallTicket(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Handler.RecallTicket", func(ctx requestContext) (*Ticket, error) {
		return h.deps.Lifecycle.Recall(ctx.ctx, ctx.venueID, ctx.code, ctx.reason)
	})
}

func (h *Handler) VoidTicket(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Handler.VoidTicket", func(ctx requestContext) (*Ticket, error) {
		return h.deps.Lifecycle.Void(ctx.ctx, ctx.venueID, ctx.code, ctx.reason)
	})
}

func (h *Handler) FireCourse(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.FireCourse")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var payload struct {
		Course string `json:"course"`
	}
	if !h.decodeBody(w, r, &payload) {
		return
	}

	fired, err := h.deps.Lifecycle.Fire(ctx, venueID, orderID, payload.Course)
	if err != nil {
		log.Errorf("cannot fire course: %v", err)
		respondDomainError(w, err, "Could not fire course")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"order_id": orderID,
		"course":   payload.Course,
		"fired":    fired,
	}, nil)
}

func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Alerts")
	defer finish()
	log := h.log(r)

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	alerts, err := h.deps.Monitor.Alerts(venueID, r.URL.Query().Get("station"))
	if err != nil {
		log.Errorf("cannot build alerts: %v", err)
		respondDomainError(w, err, "Could not build alerts")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
	}, nil)
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Overview")
	defer finish()

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"stations": h.deps.Monitor.Overview(venueID),
	}, nil)
}

func (h *Handler) ExpoDisplay(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ExpoDisplay")
	defer finish()

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"orders": h.deps.Expo.ExpoDisplay(venueID),
	}, nil)
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Metrics")
	defer finish()
	log := h.log(r)

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	windowHours := 0
	if raw := r.URL.Query().Get("window_hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			aqm.RespondError(w, http.StatusBadRequest, "Invalid window_hours")
			return
		}
		windowHours = parsed
	}

	summary, err := h.deps.Performance.Summary(venueID, r.URL.Query().Get("station"), windowHours)
	if err != nil {
		log.Errorf("cannot build metrics: %v", err)
		respondDomainError(w, err, "Could not build metrics")
		return
	}

	aqm.Respond(w, http.StatusOK, summary, nil)
}

// requestContext carries the decoded per-request transition inputs.
type requestContext struct {
	ctx     context.Context
	venueID VenueID
	code    string
	staffID StaffID
	reason  string
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, span string, op func(requestContext) (*Ticket, error)) {
	w, r, finish := h.tlm.Start(w, r, span)
	defer finish()
	log := h.log(r)

	venueID, ok := venueIDParam(r)
	if !ok {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid venue ID")
		return
	}

	var payload struct {
		StaffID string `json:"staff_id"`
		Reason  string `json:"reason"`
	}
	if !h.decodeBody(w, r, &payload) {
		return
	}
	staffID := uuid.Nil
	if payload.StaffID != "" {
		parsed, err := uuid.Parse(payload.StaffID)
		if err != nil {
			aqm.RespondError(w, http.StatusBadRequest, "Invalid staff ID")
			return
		}
		staffID = parsed
	}

	ticket, err := op(requestContext{
		ctx:     r.Context(),
		venueID: venueID,
		code:    chi.URLParam(r, "code"),
		staffID: staffID,
		reason:  payload.Reason,
	})
	if err != nil {
		log.Errorf("ticket transition failed: %v", err)
		respondDomainError(w, err, "Could not update ticket")
		return
	}

	aqm.Respond(w, http.StatusOK, ticket, nil)
}

// decodeBody reads and decodes an optional JSON body. An empty body leaves
// dst untouched.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}
	return true
}

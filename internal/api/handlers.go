// Package api exposes HTTP handlers for the timeclock service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/timeclock/internal/auth"
	"example.com/timeclock/internal/domain"
	"example.com/timeclock/internal/geo"
	"example.com/timeclock/internal/observability"
	"example.com/timeclock/internal/persistence"
)

// Handler coordinates HTTP requests with the clock engine.
type Handler struct {
	engine *domain.Engine
}

// NewHandler builds a Handler.
func NewHandler(engine *domain.Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/shifts/clock-in", h.clockIn)
	mux.HandleFunc("/v1/shifts/clock-out", h.clockOut)
	mux.HandleFunc("/v1/shifts/current", h.currentShift)
	mux.HandleFunc("/v1/shifts/active", h.activeRoster)
	mux.HandleFunc("/v1/shifts", h.listShifts)
	mux.HandleFunc("/v1/perimeter", h.perimeter)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) clockIn(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireClockAccess(w, r)
	if !ok {
		return
	}

	req, ok := decodeClockRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.ClockIn(r.Context(), domain.ClockInInput{
		OrganizationID: claims.OrganizationID,
		WorkerID:       claims.Subject,
		Location:       geo.Coordinate{Lat: *req.Latitude, Lon: *req.Longitude},
		Note:           req.Note,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	observability.RecordClockAttempt("clock_in", string(result.Outcome))

	resp := ClockResponse{
		Outcome: string(result.Outcome),
		Message: result.Message,
	}
	if result.Shift != nil {
		view := toShiftView(*result.Shift)
		resp.Shift = &view
	}
	if result.Outcome == domain.OutcomeOutsidePerimeter {
		observability.RecordRejectionDistance(result.DistanceMeters)
		distance := result.DistanceMeters
		resp.DistanceMeters = &distance
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) clockOut(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireClockAccess(w, r)
	if !ok {
		return
	}

	req, ok := decodeClockRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.ClockOut(r.Context(), domain.ClockOutInput{
		OrganizationID: claims.OrganizationID,
		WorkerID:       claims.Subject,
		Location:       geo.Coordinate{Lat: *req.Latitude, Lon: *req.Longitude},
		Note:           req.Note,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	observability.RecordClockAttempt("clock_out", string(result.Outcome))

	resp := ClockResponse{
		Outcome:       string(result.Outcome),
		Message:       result.Message,
		DurationLabel: result.DurationLabel,
	}
	if result.Shift != nil {
		view := toShiftView(*result.Shift)
		resp.Shift = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) currentShift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := h.requireReadAccess(w, r)
	if !ok {
		return
	}

	shift, err := h.engine.ActiveShift(r.Context(), claims.OrganizationID, claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := CurrentShiftResponse{OnShift: shift != nil}
	if shift != nil {
		view := toShiftView(*shift)
		resp.Shift = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listShifts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := h.requireReadAccess(w, r)
	if !ok {
		return
	}

	workerID := r.URL.Query().Get("worker_id")
	if workerID == "" {
		workerID = claims.Subject
	}
	// Workers may only read their own history; managers see any worker in
	// their organization.
	if workerID != claims.Subject && !claims.IsManager() {
		writeError(w, http.StatusForbidden, "forbidden", "you can only access your own shifts")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	shifts, next, err := h.engine.ListShifts(r.Context(), claims.OrganizationID, workerID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ShiftView, 0, len(shifts))
	for _, shift := range shifts {
		items = append(items, toShiftView(shift))
	}

	writeJSON(w, http.StatusOK, ListShiftsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) activeRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := h.requireReadAccess(w, r)
	if !ok {
		return
	}
	if !claims.IsManager() {
		writeError(w, http.StatusForbidden, "forbidden", "manager role required")
		return
	}

	shifts, err := h.engine.ActiveRoster(r.Context(), claims.OrganizationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ShiftView, 0, len(shifts))
	for _, shift := range shifts {
		items = append(items, toShiftView(shift))
	}
	writeJSON(w, http.StatusOK, ActiveRosterResponse{Items: items})
}

func (h *Handler) perimeter(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getPerimeter(w, r)
	case http.MethodPut:
		h.updatePerimeter(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) getPerimeter(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	perimeter, err := h.engine.Perimeter(r.Context(), claims.OrganizationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if perimeter == nil {
		writeError(w, http.StatusNotFound, "not_found", "no perimeter configured")
		return
	}
	writeJSON(w, http.StatusOK, toPerimeterView(*perimeter))
}

func (h *Handler) updatePerimeter(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.IsManager() {
		writeError(w, http.StatusForbidden, "forbidden", "manager role required")
		return
	}
	if !claims.HasScope(auth.ScopePerimeterManage) {
		writeError(w, http.StatusForbidden, "forbidden", "scope perimeter:manage required")
		return
	}

	var req UpdatePerimeterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	saved, err := h.engine.UpdatePerimeter(r.Context(), geo.Perimeter{
		OrganizationID: claims.OrganizationID,
		DisplayName:    strings.TrimSpace(req.DisplayName),
		Center:         geo.Coordinate{Lat: req.Latitude, Lon: req.Longitude},
		RadiusMeters:   req.RadiusMeters,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPerimeterView(*saved))
}

func (h *Handler) requireClockAccess(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return nil, false
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(auth.ScopeShiftsClock) {
		writeError(w, http.StatusForbidden, "forbidden", "scope shifts:clock required")
		return nil, false
	}
	return claims, true
}

func (h *Handler) requireReadAccess(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(auth.ScopeShiftsRead) && !claims.HasScope(auth.ScopeShiftsClock) {
		writeError(w, http.StatusForbidden, "forbidden", "scope shifts:read required")
		return nil, false
	}
	return claims, true
}

func decodeClockRequest(w http.ResponseWriter, r *http.Request) (ClockRequest, bool) {
	var req ClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return ClockRequest{}, false
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "latitude and longitude are required")
		return ClockRequest{}, false
	}
	return req, true
}

func writeEngineError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, "validation_failed", verr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error", err.Error())
}

// ClockRequest is the payload for clock-in and clock-out. Coordinates are
// pointers so a missing field is distinguishable from zero (a valid
// coordinate on the equator and prime meridian).
type ClockRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Note      string   `json:"note"`
}

// ClockResponse reports the business outcome of a clock operation.
type ClockResponse struct {
	Outcome        string     `json:"outcome"`
	Message        string     `json:"message"`
	Shift          *ShiftView `json:"shift,omitempty"`
	DistanceMeters *float64   `json:"distance_meters,omitempty"`
	DurationLabel  string     `json:"duration_label,omitempty"`
}

// ClockStampView renders one end of a shift.
type ClockStampView struct {
	At        time.Time `json:"at"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Note      string    `json:"note,omitempty"`
}

// ShiftView exposes full details about a shift.
type ShiftView struct {
	ShiftID         string          `json:"shift_id"`
	OrganizationID  string          `json:"organization_id"`
	WorkerID        string          `json:"worker_id"`
	Status          string          `json:"status"`
	ClockIn         ClockStampView  `json:"clock_in"`
	ClockOut        *ClockStampView `json:"clock_out,omitempty"`
	DurationMinutes *int            `json:"duration_minutes,omitempty"`
	DurationLabel   string          `json:"duration_label,omitempty"`
	SyncState       string          `json:"sync_state"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CurrentShiftResponse reports whether the caller is on shift.
type CurrentShiftResponse struct {
	OnShift bool       `json:"on_shift"`
	Shift   *ShiftView `json:"shift,omitempty"`
}

// ListShiftsResponse packages history results.
type ListShiftsResponse struct {
	Items      []ShiftView `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// ActiveRosterResponse lists every worker currently on shift.
type ActiveRosterResponse struct {
	Items []ShiftView `json:"items"`
}

// UpdatePerimeterRequest is the payload for PUT /v1/perimeter.
type UpdatePerimeterRequest struct {
	DisplayName  string  `json:"display_name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

// PerimeterView renders the organization geofence.
type PerimeterView struct {
	OrganizationID string  `json:"organization_id"`
	DisplayName    string  `json:"display_name"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	RadiusMeters   float64 `json:"radius_meters"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toShiftView(shift domain.Shift) ShiftView {
	view := ShiftView{
		ShiftID:        shift.ID,
		OrganizationID: shift.OrganizationID,
		WorkerID:       shift.WorkerID,
		Status:         string(shift.Status),
		ClockIn: ClockStampView{
			At:        shift.ClockIn.Time,
			Latitude:  shift.ClockIn.Location.Lat,
			Longitude: shift.ClockIn.Location.Lon,
			Note:      shift.ClockIn.Note,
		},
		SyncState: string(shift.SyncState),
		CreatedAt: shift.CreatedAt,
		UpdatedAt: shift.UpdatedAt,
	}
	if shift.ClockOut != nil {
		view.ClockOut = &ClockStampView{
			At:        shift.ClockOut.Time,
			Latitude:  shift.ClockOut.Location.Lat,
			Longitude: shift.ClockOut.Location.Lon,
			Note:      shift.ClockOut.Note,
		}
	}
	if shift.DurationMinutes != nil {
		minutes := *shift.DurationMinutes
		view.DurationMinutes = &minutes
		view.DurationLabel = domain.DurationLabel(minutes)
	}
	return view
}

func toPerimeterView(perimeter geo.Perimeter) PerimeterView {
	return PerimeterView{
		OrganizationID: perimeter.OrganizationID,
		DisplayName:    perimeter.DisplayName,
		Latitude:       perimeter.Center.Lat,
		Longitude:      perimeter.Center.Lon,
		RadiusMeters:   perimeter.RadiusMeters,
	}
}

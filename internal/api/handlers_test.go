package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/timeclock/internal/auth"
	"example.com/timeclock/internal/domain"
	"example.com/timeclock/internal/geo"
)

func workerClaims() *auth.Claims {
	return &auth.Claims{
		Subject:        "worker-1",
		OrganizationID: "org-1",
		Role:           auth.RoleWorker,
		Scopes: map[string]struct{}{
			auth.ScopeShiftsClock: {},
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func managerClaims() *auth.Claims {
	return &auth.Claims{
		Subject:        "manager-1",
		OrganizationID: "org-1",
		Role:           auth.RoleManager,
		Scopes: map[string]struct{}{
			auth.ScopeShiftsRead:      {},
			auth.ScopePerimeterManage: {},
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func newTestHandler(withPerimeter bool) (*Handler, *fakeShiftStore) {
	shifts := &fakeShiftStore{}
	perimeters := &fakePerimeterStore{}
	if withPerimeter {
		perimeters.perimeter = &geo.Perimeter{
			OrganizationID: "org-1",
			DisplayName:    "Main Site",
			Center:         geo.Coordinate{Lat: 40.7589, Lon: -73.9851},
			RadiusMeters:   100,
		}
	}
	return NewHandler(domain.NewEngine(shifts, perimeters)), shifts
}

func postJSON(path string, body map[string]interface{}, claims *auth.Claims) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	if claims != nil {
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	return req
}

func TestClockInSuccess(t *testing.T) {
	handler, _ := newTestHandler(true)

	req := postJSON("/v1/shifts/clock-in", map[string]interface{}{
		"latitude":  40.7589,
		"longitude": -73.9851,
		"note":      "morning round",
	}, workerClaims())

	rr := httptest.NewRecorder()
	handler.clockIn(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ClockResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Outcome != string(domain.OutcomeSuccess) {
		t.Fatalf("expected success outcome, got %q (%s)", resp.Outcome, resp.Message)
	}
	if resp.Shift == nil || resp.Shift.Status != string(domain.ShiftStatusActive) {
		t.Fatalf("expected active shift in response, got %+v", resp.Shift)
	}
	if resp.Shift.WorkerID != "worker-1" {
		t.Fatalf("worker identity must come from claims, got %q", resp.Shift.WorkerID)
	}
}

func TestClockInRequiresClockScope(t *testing.T) {
	handler, _ := newTestHandler(true)

	claims := workerClaims()
	claims.Scopes = map[string]struct{}{auth.ScopeShiftsRead: {}}

	req := postJSON("/v1/shifts/clock-in", map[string]interface{}{
		"latitude":  40.7589,
		"longitude": -73.9851,
	}, claims)

	rr := httptest.NewRecorder()
	handler.clockIn(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestClockInRequiresCoordinates(t *testing.T) {
	handler, _ := newTestHandler(true)

	req := postJSON("/v1/shifts/clock-in", map[string]interface{}{
		"note": "forgot my location",
	}, workerClaims())

	rr := httptest.NewRecorder()
	handler.clockIn(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestClockInOutsidePerimeterReportsDistance(t *testing.T) {
	handler, shifts := newTestHandler(true)

	req := postJSON("/v1/shifts/clock-in", map[string]interface{}{
		"latitude":  40.7700,
		"longitude": -73.9900,
	}, workerClaims())

	rr := httptest.NewRecorder()
	handler.clockIn(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	var resp ClockResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Outcome != string(domain.OutcomeOutsidePerimeter) {
		t.Fatalf("expected outside_perimeter, got %q", resp.Outcome)
	}
	if resp.DistanceMeters == nil || *resp.DistanceMeters <= 100 {
		t.Fatalf("expected distance beyond radius, got %v", resp.DistanceMeters)
	}
	if len(shifts.shifts) != 0 {
		t.Fatal("no shift may be created for a rejected clock-in")
	}
}

func TestClockInRejectsOverlongNote(t *testing.T) {
	handler, _ := newTestHandler(true)

	req := postJSON("/v1/shifts/clock-in", map[string]interface{}{
		"latitude":  40.7589,
		"longitude": -73.9851,
		"note":      strings.Repeat("x", 501),
	}, workerClaims())

	rr := httptest.NewRecorder()
	handler.clockIn(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestClockOutWithoutActiveShift(t *testing.T) {
	handler, _ := newTestHandler(true)

	req := postJSON("/v1/shifts/clock-out", map[string]interface{}{
		"latitude":  40.7589,
		"longitude": -73.9851,
	}, workerClaims())

	rr := httptest.NewRecorder()
	handler.clockOut(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	var resp ClockResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Outcome != string(domain.OutcomeNoActiveShift) {
		t.Fatalf("expected no_active_shift, got %q", resp.Outcome)
	}
}

func TestClockOutReportsDuration(t *testing.T) {
	handler, shifts := newTestHandler(true)
	start := time.Now().UTC().Add(-2 * time.Hour)
	shifts.seedActive("org-1", "worker-1", start)

	req := postJSON("/v1/shifts/clock-out", map[string]interface{}{
		"latitude":  40.7700,
		"longitude": -73.9900,
	}, workerClaims())

	rr := httptest.NewRecorder()
	handler.clockOut(rr, req)

	var resp ClockResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Outcome != string(domain.OutcomeSuccess) {
		t.Fatalf("expected success, got %q (%s)", resp.Outcome, resp.Message)
	}
	if resp.DurationLabel != "2h 0m" {
		t.Fatalf("expected duration label 2h 0m, got %q", resp.DurationLabel)
	}
	if resp.Shift == nil || resp.Shift.Status != string(domain.ShiftStatusCompleted) {
		t.Fatalf("expected completed shift, got %+v", resp.Shift)
	}
}

func TestListShiftsForbidsReadingOthers(t *testing.T) {
	handler, _ := newTestHandler(true)

	req := httptest.NewRequest(http.MethodGet, "/v1/shifts?worker_id=worker-2", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), workerClaims()))

	rr := httptest.NewRecorder()
	handler.listShifts(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestListShiftsManagerMayReadAnyWorker(t *testing.T) {
	handler, shifts := newTestHandler(true)
	shifts.seedActive("org-1", "worker-2", time.Now().UTC())

	req := httptest.NewRequest(http.MethodGet, "/v1/shifts?worker_id=worker-2", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), managerClaims()))

	rr := httptest.NewRecorder()
	handler.listShifts(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ListShiftsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].WorkerID != "worker-2" {
		t.Fatalf("unexpected items: %+v", resp.Items)
	}
}

func TestActiveRosterRequiresManager(t *testing.T) {
	handler, _ := newTestHandler(true)

	claims := workerClaims()
	req := httptest.NewRequest(http.MethodGet, "/v1/shifts/active", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), claims))

	rr := httptest.NewRecorder()
	handler.activeRoster(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestActiveRosterListsOnShiftWorkers(t *testing.T) {
	handler, shifts := newTestHandler(true)
	shifts.seedActive("org-1", "worker-1", time.Now().UTC())
	shifts.seedActive("org-1", "worker-2", time.Now().UTC())

	req := httptest.NewRequest(http.MethodGet, "/v1/shifts/active", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), managerClaims()))

	rr := httptest.NewRecorder()
	handler.activeRoster(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	var resp ActiveRosterResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 active shifts, got %d", len(resp.Items))
	}
}

func TestUpdatePerimeterRequiresManagerRole(t *testing.T) {
	handler, _ := newTestHandler(false)

	claims := workerClaims()
	claims.Scopes[auth.ScopePerimeterManage] = struct{}{}

	raw, _ := json.Marshal(UpdatePerimeterRequest{
		DisplayName: "Main Site", Latitude: 40.7589, Longitude: -73.9851, RadiusMeters: 100,
	})
	req := httptest.NewRequest(http.MethodPut, "/v1/perimeter", bytes.NewReader(raw))
	req = req.WithContext(auth.WithClaims(req.Context(), claims))

	rr := httptest.NewRecorder()
	handler.perimeter(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestUpdatePerimeterRejectsNonPositiveRadius(t *testing.T) {
	handler, _ := newTestHandler(false)

	raw, _ := json.Marshal(UpdatePerimeterRequest{
		DisplayName: "Main Site", Latitude: 40.7589, Longitude: -73.9851, RadiusMeters: 0,
	})
	req := httptest.NewRequest(http.MethodPut, "/v1/perimeter", bytes.NewReader(raw))
	req = req.WithContext(auth.WithClaims(req.Context(), managerClaims()))

	rr := httptest.NewRecorder()
	handler.perimeter(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUpdateThenGetPerimeter(t *testing.T) {
	handler, _ := newTestHandler(false)

	raw, _ := json.Marshal(UpdatePerimeterRequest{
		DisplayName: "Main Site", Latitude: 40.7589, Longitude: -73.9851, RadiusMeters: 120,
	})
	putReq := httptest.NewRequest(http.MethodPut, "/v1/perimeter", bytes.NewReader(raw))
	putReq = putReq.WithContext(auth.WithClaims(putReq.Context(), managerClaims()))

	rr := httptest.NewRecorder()
	handler.perimeter(rr, putReq)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/v1/perimeter", nil)
	getReq = getReq.WithContext(auth.WithClaims(getReq.Context(), workerClaims()))

	rr = httptest.NewRecorder()
	handler.perimeter(rr, getReq)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	var view PerimeterView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if view.RadiusMeters != 120 || view.DisplayName != "Main Site" {
		t.Fatalf("unexpected perimeter view: %+v", view)
	}
}

func TestCurrentShiftWhenOffShift(t *testing.T) {
	handler, _ := newTestHandler(true)

	req := httptest.NewRequest(http.MethodGet, "/v1/shifts/current", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), workerClaims()))

	rr := httptest.NewRecorder()
	handler.currentShift(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	var resp CurrentShiftResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.OnShift || resp.Shift != nil {
		t.Fatalf("expected off-shift response, got %+v", resp)
	}
}

type fakeShiftStore struct {
	shifts []domain.Shift
	nextID int
}

func (s *fakeShiftStore) seedActive(organizationID, workerID string, clockInAt time.Time) {
	s.nextID++
	s.shifts = append(s.shifts, domain.Shift{
		ID:             "seed-" + workerID,
		OrganizationID: organizationID,
		WorkerID:       workerID,
		Status:         domain.ShiftStatusActive,
		ClockIn: domain.ClockStamp{
			Time:     clockInAt,
			Location: geo.Coordinate{Lat: 40.7589, Lon: -73.9851},
		},
		SyncState: domain.SyncStatePending,
		CreatedAt: clockInAt,
		UpdatedAt: clockInAt,
	})
}

func (s *fakeShiftStore) FindActive(ctx context.Context, organizationID, workerID string) (*domain.Shift, error) {
	for i := range s.shifts {
		shift := s.shifts[i]
		if shift.OrganizationID == organizationID && shift.WorkerID == workerID && shift.Status == domain.ShiftStatusActive {
			return &shift, nil
		}
	}
	return nil, nil
}

func (s *fakeShiftStore) CreateActive(ctx context.Context, shift domain.Shift) error {
	for _, existing := range s.shifts {
		if existing.WorkerID == shift.WorkerID && existing.Status == domain.ShiftStatusActive {
			return domain.ErrActiveShiftExists
		}
	}
	s.shifts = append(s.shifts, shift)
	return nil
}

func (s *fakeShiftStore) Complete(ctx context.Context, organizationID, shiftID string, clockOut domain.ClockStamp, durationMinutes int) (*domain.Shift, error) {
	for i := range s.shifts {
		if s.shifts[i].ID == shiftID && s.shifts[i].OrganizationID == organizationID {
			if s.shifts[i].Status != domain.ShiftStatusActive {
				return nil, domain.ErrShiftNotActive
			}
			s.shifts[i].Status = domain.ShiftStatusCompleted
			s.shifts[i].ClockOut = &clockOut
			s.shifts[i].DurationMinutes = &durationMinutes
			s.shifts[i].UpdatedAt = clockOut.Time
			shift := s.shifts[i]
			return &shift, nil
		}
	}
	return nil, domain.ErrShiftNotFound
}

func (s *fakeShiftStore) ListByWorker(ctx context.Context, organizationID, workerID string, cursor *domain.Cursor, limit int) ([]domain.Shift, *domain.Cursor, error) {
	out := make([]domain.Shift, 0)
	for _, shift := range s.shifts {
		if shift.OrganizationID == organizationID && shift.WorkerID == workerID {
			out = append(out, shift)
		}
	}
	return out, nil, nil
}

func (s *fakeShiftStore) ActiveByOrganization(ctx context.Context, organizationID string) ([]domain.Shift, error) {
	out := make([]domain.Shift, 0)
	for _, shift := range s.shifts {
		if shift.OrganizationID == organizationID && shift.Status == domain.ShiftStatusActive {
			out = append(out, shift)
		}
	}
	return out, nil
}

type fakePerimeterStore struct {
	perimeter *geo.Perimeter
}

func (s *fakePerimeterStore) Get(ctx context.Context, organizationID string) (*geo.Perimeter, error) {
	if s.perimeter == nil || s.perimeter.OrganizationID != organizationID {
		return nil, nil
	}
	perimeter := *s.perimeter
	return &perimeter, nil
}

func (s *fakePerimeterStore) Set(ctx context.Context, perimeter geo.Perimeter) (*geo.Perimeter, error) {
	s.perimeter = &perimeter
	return &perimeter, nil
}

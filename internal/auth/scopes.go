package auth

// Known OAuth scopes used by the timeclock service.
const (
	ScopeShiftsClock     = "shifts:clock"
	ScopeShiftsRead      = "shifts:read"
	ScopePerimeterManage = "perimeter:manage"
)

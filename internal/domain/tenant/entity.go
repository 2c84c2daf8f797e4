package tenant

import "time"

// Tenant is an isolated customer organization. Civil-time settings live here
// so every timestamp-parsing and day-boundary computation uses an explicit
// tenant offset instead of the host timezone.
type Tenant struct {
	ID                 string
	Name               string
	TZOffsetMinutes    int     // fixed UTC offset of the tenant's civil time
	EarlyWindowEndHour int     // exclusive end of the carry-back window, local hours
	FullDayThreshold   float64 // working hours above which a day is Present
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

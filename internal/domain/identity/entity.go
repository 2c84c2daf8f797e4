package identity

import "time"

// Namespace distinguishes the identifier spaces a device-local token may live
// in. The same string can legitimately appear in more than one namespace for
// different people, so resolution always names the namespace it matched.
type Namespace string

const (
	NamespaceDeviceUserID Namespace = "device_user_id"
	NamespaceEmployeeCode Namespace = "employee_code"
	NamespaceSourceID     Namespace = "source_employee_id"
)

// EmployeeIdentity is the canonical person record owned by the employee
// directory. The pipeline reads it for resolution and join-date checks and
// writes only the identity-linking fields (device token, name backfill,
// placeholder creation).
type EmployeeIdentity struct {
	ID               string
	TenantID         string
	EmployeeCode     string
	FirstName        string
	LastName         string
	DeviceUserID     *string
	SourceEmployeeID *string
	IsActive         bool
	AutoGenerated    bool
	JoinDate         time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FullName renders the display name.
func (e EmployeeIdentity) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// Tokens returns every device-local token this identity answers to, in
// resolution namespace order.
func (e EmployeeIdentity) Tokens() []string {
	seen := make(map[string]bool)
	var tokens []string
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	if e.DeviceUserID != nil {
		add(*e.DeviceUserID)
	}
	add(e.EmployeeCode)
	if e.SourceEmployeeID != nil {
		add(*e.SourceEmployeeID)
	}
	return tokens
}

package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/apextime/attendance-backend-go/internal/config"
	"github.com/apextime/attendance-backend-go/internal/domain/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDirectory is an in-memory identity.DirectoryRepository.
type fakeDirectory struct {
	identities   []identity.EmployeeIdentity
	placeholders int
}

func (f *fakeDirectory) FindActiveByToken(_ context.Context, tenantID, token string, ns identity.Namespace) ([]identity.EmployeeIdentity, error) {
	var matches []identity.EmployeeIdentity
	for _, e := range f.identities {
		if e.TenantID != tenantID || !e.IsActive {
			continue
		}
		switch ns {
		case identity.NamespaceDeviceUserID:
			if e.DeviceUserID != nil && *e.DeviceUserID == token {
				matches = append(matches, e)
			}
		case identity.NamespaceEmployeeCode:
			if e.EmployeeCode == token {
				matches = append(matches, e)
			}
		case identity.NamespaceSourceID:
			if e.SourceEmployeeID != nil && *e.SourceEmployeeID == token {
				matches = append(matches, e)
			}
		}
	}
	return matches, nil
}

func (f *fakeDirectory) CreatePlaceholder(_ context.Context, tenantID, token string, joinDate time.Time) (identity.EmployeeIdentity, error) {
	for _, e := range f.identities {
		if e.TenantID == tenantID && e.DeviceUserID != nil && *e.DeviceUserID == token {
			return e, nil
		}
	}
	f.placeholders++
	tok := token
	e := identity.EmployeeIdentity{
		ID:            "auto-" + token,
		TenantID:      tenantID,
		EmployeeCode:  token,
		FirstName:     "Auto-User",
		LastName:      token,
		DeviceUserID:  &tok,
		IsActive:      true,
		AutoGenerated: true,
		JoinDate:      joinDate,
	}
	f.identities = append(f.identities, e)
	return e, nil
}

func (f *fakeDirectory) GetByID(_ context.Context, tenantID, id string) (identity.EmployeeIdentity, error) {
	for _, e := range f.identities {
		if e.TenantID == tenantID && e.ID == id {
			return e, nil
		}
	}
	return identity.EmployeeIdentity{}, identity.ErrIdentityNotFound
}

func (f *fakeDirectory) GetJoinDate(ctx context.Context, tenantID, id string) (time.Time, error) {
	e, err := f.GetByID(ctx, tenantID, id)
	if err != nil {
		return time.Time{}, err
	}
	return e.JoinDate, nil
}

func (f *fakeDirectory) UpdateName(_ context.Context, tenantID, id, firstName, lastName string) error {
	for i, e := range f.identities {
		if e.TenantID == tenantID && e.ID == id {
			f.identities[i].FirstName = firstName
			f.identities[i].LastName = lastName
			return nil
		}
	}
	return identity.ErrIdentityNotFound
}

func (f *fakeDirectory) ListActive(_ context.Context, tenantID string) ([]identity.EmployeeIdentity, error) {
	var out []identity.EmployeeIdentity
	for _, e := range f.identities {
		if e.TenantID == tenantID && e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeDirectory) ListAutoGenerated(_ context.Context, tenantID string) ([]identity.EmployeeIdentity, error) {
	var out []identity.EmployeeIdentity
	for _, e := range f.identities {
		if e.TenantID == tenantID && e.AutoGenerated {
			out = append(out, e)
		}
	}
	return out, nil
}

func testConfig() config.AttendanceConfig {
	return config.AttendanceConfig{
		LegacyCodePrefix:   "HO",
		LegacyCodePadWidth: 3,
		ResolverCacheTTL:   time.Minute,
	}
}

func strPtr(s string) *string { return &s }

func TestResolve_DeviceUserIDWinsOverEmployeeCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{identities: []identity.EmployeeIdentity{
		{ID: "e1", TenantID: "t1", EmployeeCode: "42", FirstName: "Priya", IsActive: true},
		{ID: "e2", TenantID: "t1", EmployeeCode: "HO042", DeviceUserID: strPtr("42"), FirstName: "Arun", IsActive: true},
	}}
	svc := NewResolverService(dir, testConfig())

	got, err := svc.Resolve(ctx, "t1", "42")

	require.NoError(t, err)
	assert.Equal(t, "e2", got.ID)
}

func TestResolve_FallsThroughNamespaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{identities: []identity.EmployeeIdentity{
		{ID: "e1", TenantID: "t1", EmployeeCode: "EMP9", SourceEmployeeID: strPtr("legacy-9"), IsActive: true},
	}}
	svc := NewResolverService(dir, testConfig())

	byCode, err := svc.Resolve(ctx, "t1", "EMP9")
	require.NoError(t, err)
	assert.Equal(t, "e1", byCode.ID)

	bySource, err := svc.Resolve(ctx, "t1", "legacy-9")
	require.NoError(t, err)
	assert.Equal(t, "e1", bySource.ID)
}

func TestResolve_ShortNumericTokenMatchesLegacyCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{identities: []identity.EmployeeIdentity{
		{ID: "e7", TenantID: "t1", EmployeeCode: "HO007", FirstName: "Nisha", IsActive: true},
	}}
	svc := NewResolverService(dir, testConfig())

	got, err := svc.Resolve(ctx, "t1", "7")

	require.NoError(t, err)
	assert.Equal(t, "e7", got.ID)
	assert.Zero(t, dir.placeholders)
}

func TestResolve_DirectMatchBeatsLegacyHeuristic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{identities: []identity.EmployeeIdentity{
		{ID: "direct", TenantID: "t1", EmployeeCode: "4", IsActive: true},
		{ID: "padded", TenantID: "t1", EmployeeCode: "HO004", IsActive: true},
	}}
	svc := NewResolverService(dir, testConfig())

	got, err := svc.Resolve(ctx, "t1", "4")

	require.NoError(t, err)
	assert.Equal(t, "direct", got.ID)
}

func TestResolve_CreatesPlaceholderOnMiss(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{}
	svc := NewResolverService(dir, testConfig())

	got, err := svc.Resolve(ctx, "t1", "999")

	require.NoError(t, err)
	assert.True(t, got.AutoGenerated)
	assert.Equal(t, "Auto-User", got.FirstName)
	require.NotNil(t, got.DeviceUserID)
	assert.Equal(t, "999", *got.DeviceUserID)
	assert.Equal(t, 1, dir.placeholders)

	// Resolving again reuses the placeholder.
	again, err := svc.Resolve(ctx, "t1", "999")
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
	assert.Equal(t, 1, dir.placeholders)
}

func TestResolve_InactiveIdentityIsSkipped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{identities: []identity.EmployeeIdentity{
		{ID: "old", TenantID: "t1", EmployeeCode: "55", IsActive: false},
	}}
	svc := NewResolverService(dir, testConfig())

	got, err := svc.Resolve(ctx, "t1", "55")

	require.NoError(t, err)
	assert.True(t, got.AutoGenerated)
}

func TestResolve_TenantsAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{identities: []identity.EmployeeIdentity{
		{ID: "e1", TenantID: "t1", EmployeeCode: "42", IsActive: true},
	}}
	svc := NewResolverService(dir, testConfig())

	got, err := svc.Resolve(ctx, "t2", "42")

	require.NoError(t, err)
	assert.NotEqual(t, "e1", got.ID)
	assert.True(t, got.AutoGenerated)
}

func TestBackfillName_UpgradesPlaceholderOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{identities: []identity.EmployeeIdentity{
		{ID: "auto1", TenantID: "t1", EmployeeCode: "101", DeviceUserID: strPtr("101"),
			FirstName: "Auto-User", LastName: "101", IsActive: true, AutoGenerated: true},
		{ID: "real1", TenantID: "t1", EmployeeCode: "102", DeviceUserID: strPtr("102"),
			FirstName: "Kavya", LastName: "Rao", IsActive: true},
	}}
	svc := NewResolverService(dir, testConfig())

	require.NoError(t, svc.BackfillName(ctx, "t1", "101", "Ravi Kumar"))
	upgraded, _ := dir.GetByID(ctx, "t1", "auto1")
	assert.Equal(t, "Ravi", upgraded.FirstName)
	assert.Equal(t, "Kumar", upgraded.LastName)

	// A real name is never overwritten.
	require.NoError(t, svc.BackfillName(ctx, "t1", "102", "Someone Else"))
	kept, _ := dir.GetByID(ctx, "t1", "real1")
	assert.Equal(t, "Kavya", kept.FirstName)

	// Numeric display names are ignored.
	require.NoError(t, svc.BackfillName(ctx, "t1", "101", "12345"))
	still, _ := dir.GetByID(ctx, "t1", "auto1")
	assert.Equal(t, "Ravi", still.FirstName)
}

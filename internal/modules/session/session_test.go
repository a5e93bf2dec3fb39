package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/customer"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/gateway/gatewaytest"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acme tenant.ID = "a0000000-0000-4000-8000-000000000001"

func as(subject string) context.Context {
	return tenant.WithSession(context.Background(), tenant.Session{CompanyID: acme, Subject: subject, Role: tenant.RoleStaff})
}

func countCalls(calls []string, method string) int {
	n := 0
	for _, c := range calls {
		if c == method {
			n++
		}
	}
	return n
}

func TestGet_LoadsOncePerCaller(t *testing.T) {
	gw := gatewaytest.NewFake()
	m := NewManager(gw, time.Hour)

	var wg sync.WaitGroup
	got := make([]*Session, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Get(as("alice"))
			assert.NoError(t, err)
			got[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, countCalls(gw.Calls(), "ListCustomers"))
	assert.True(t, got[0].Cache.Loaded())

	bob, err := m.Get(as("bob"))
	require.NoError(t, err)
	assert.NotSame(t, got[0], bob)
	assert.Equal(t, 2, m.Len())
}

func TestGet_NoTenant(t *testing.T) {
	m := NewManager(gatewaytest.NewFake(), time.Hour)
	_, err := m.Get(context.Background())
	assert.ErrorIs(t, err, tenant.ErrNoTenantResolved)
}

func TestGet_LeaderCancelDoesNotFailLoad(t *testing.T) {
	gw := gatewaytest.NewFake()
	m := NewManager(gw, time.Hour)

	ctx, cancel := context.WithCancel(as("alice"))
	cancel()
	s, err := m.Get(ctx)
	require.NoError(t, err)
	assert.True(t, s.Cache.Loaded())
	assert.Equal(t, 1, m.Len())

	again, err := m.Get(as("alice"))
	require.NoError(t, err)
	assert.Same(t, s, again)
}

func TestGet_LoadTimeout(t *testing.T) {
	m := NewManager(gatewaytest.NewFake(), time.Hour)
	m.LoadTimeout = -time.Second

	_, err := m.Get(as("alice"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, m.Len())
}

func TestGet_FailedLoadIsNotKept(t *testing.T) {
	gw := gatewaytest.NewFake()
	gw.FailNext("ListWatches", apperr.ErrUnavailable)
	m := NewManager(gw, time.Hour)

	_, err := m.Get(as("alice"))
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.Zero(t, m.Len())

	_, err = m.Get(as("alice"))
	assert.NoError(t, err)
}

func TestReload_PicksUpOtherSessionsWrites(t *testing.T) {
	gw := gatewaytest.NewFake()
	m := NewManager(gw, time.Hour)
	alice, err := m.Get(as("alice"))
	require.NoError(t, err)
	bob, err := m.Get(as("bob"))
	require.NoError(t, err)

	_, err = bob.Workflow.CreateCustomer(as("bob"), &customer.Customer{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"})
	require.NoError(t, err)

	list, err := alice.Cache.Customers(as("alice"))
	require.NoError(t, err)
	assert.Empty(t, list)

	reloaded, err := m.Reload(as("alice"))
	require.NoError(t, err)
	assert.Same(t, alice, reloaded)
	list, err = alice.Cache.Customers(as("alice"))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSweep_EvictsIdleSessions(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	m := NewManager(gatewaytest.NewFake(), 30*time.Minute)
	m.now = func() time.Time { return now }

	_, err := m.Get(as("alice"))
	require.NoError(t, err)
	now = now.Add(20 * time.Minute)
	_, err = m.Get(as("bob"))
	require.NoError(t, err)

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Close(as("bob")))
	assert.Zero(t, m.Len())
}

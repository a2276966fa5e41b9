package registrar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/heytom-labs/consul-registrar/internal/config"
	"github.com/heytom-labs/consul-registrar/internal/identity"
	"github.com/heytom-labs/consul-registrar/internal/registry"
	"github.com/heytom-labs/consul-registrar/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type call struct {
	op    string
	id    string
	name  string
	paths []string
}

type fakeRegistry struct {
	mu       sync.Mutex
	calls    []call
	services []*registry.Service
	errs     map[string]error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{errs: make(map[string]error)}
}

func (f *fakeRegistry) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.errs[c.op]
}

func (f *fakeRegistry) RegisterService(_ context.Context, s *registry.Service) error {
	f.mu.Lock()
	f.services = append(f.services, s)
	f.mu.Unlock()
	return f.record(call{op: "register-service", id: s.ID, name: s.Name})
}

func (f *fakeRegistry) DeregisterService(_ context.Context, id string) error {
	return f.record(call{op: "deregister-service", id: id})
}

func (f *fakeRegistry) RegisterResources(_ context.Context, name string, paths []string) error {
	return f.record(call{op: "register-resources", name: name, paths: paths})
}

func (f *fakeRegistry) DeregisterResources(_ context.Context, paths []string) error {
	return f.record(call{op: "deregister-resources", paths: paths})
}

func (f *fakeRegistry) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, len(f.calls))
	for i, c := range f.calls {
		ops[i] = c.op
	}
	return ops
}

type fakeLoader map[string][]string

func (f fakeLoader) Load(_ context.Context, source string) ([]string, error) {
	paths, ok := f[source]
	if !ok {
		return nil, &resource.DescriptionParseError{Source: source, Err: os.ErrNotExist}
	}
	return paths, nil
}

type fixture struct {
	registrar *Registrar
	registry  *fakeRegistry
	store     *identity.Store
	logs      *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	reg := newFakeRegistry()
	store := identity.NewStore(filepath.Join(t.TempDir(), config.DefaultIdentityFile))
	loader := fakeLoader{"api.raml": {"/api/stockCards/{id}", "/api/stockCards"}}

	r := New(reg, store, loader, zap.New(core).Sugar())
	r.localAddress = func() (string, error) { return "10.0.0.8", nil }
	return &fixture{registrar: r, registry: reg, store: store, logs: logs}
}

func settings(command string) *config.Settings {
	s := config.DefaultSettings()
	s.Command = command
	s.Service.Name = "stockmanagement"
	s.Service.Port = 8080
	s.RAML = "api.raml"
	s.Paths = []string{"api/stockEvents", "/api/reasons"}
	return s
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	s := settings(config.CommandRegister)
	s.Service.Tags = []string{"v1"}
	s.Service.Check = &config.CheckConfig{HTTP: "http://HOST:PORT/health", Interval: "10s"}

	require.NoError(t, f.registrar.Run(context.Background(), s))

	assert.Equal(t, []string{"register-service", "register-resources", "register-resources"}, f.registry.ops())

	svc := f.registry.services[0]
	assert.True(t, strings.HasPrefix(svc.ID, "stockmanagement-"))
	assert.Equal(t, "10.0.0.8", svc.Address)
	assert.Equal(t, 8080, svc.Port)
	assert.Equal(t, []string{"v1"}, svc.Tags)
	require.NotNil(t, svc.Check)
	assert.Equal(t, "http://10.0.0.8:8080/health", svc.Check.HTTP)
	assert.Equal(t, "10s", svc.Check.Interval)

	assert.Equal(t, "stockmanagement", f.registry.calls[1].name)
	assert.Equal(t, []string{"/api/stockCards/{id}", "/api/stockCards"}, f.registry.calls[1].paths)
	assert.Equal(t, []string{"/api/stockEvents", "/api/reasons"}, f.registry.calls[2].paths)

	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, svc.ID, string(data))
}

func TestRegisterKeepsExplicitAddressAndID(t *testing.T) {
	f := newFixture(t)
	s := settings(config.CommandRegister)
	s.Service.ID = "stock-1"
	s.Service.Address = "192.168.1.20"
	s.RAML = ""

	require.NoError(t, f.registrar.Register(context.Background(), s))

	svc := f.registry.services[0]
	assert.Equal(t, "stock-1", svc.ID)
	assert.Equal(t, "192.168.1.20", svc.Address)
	assert.Nil(t, svc.Check)
	assert.Equal(t, []string{"register-service", "register-resources"}, f.registry.ops())
}

func TestRegisterServiceFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.registry.errs["register-service"] = &registry.TransientBackendError{Method: "PUT", Endpoint: "/v1/agent/service/register", Err: errors.New("connection refused")}

	err := f.registrar.Run(context.Background(), settings(config.CommandRegister))
	require.Error(t, err)
	assert.Equal(t, []string{"register-service"}, f.registry.ops())

	_, statErr := os.Stat(f.store.Path())
	assert.NoError(t, statErr, "identity file is kept for a rerun")
}

func TestRegisterDescriptionErrorIsFatal(t *testing.T) {
	f := newFixture(t)
	s := settings(config.CommandRegister)
	s.RAML = "missing.raml"

	err := f.registrar.Run(context.Background(), s)
	var parseErr *resource.DescriptionParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, []string{"register-service"}, f.registry.ops())
}

func TestRegisterResourceFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.registry.errs["register-resources"] = &registry.RejectedRequestError{StatusCode: 403}

	err := f.registrar.Run(context.Background(), settings(config.CommandRegister))
	assert.True(t, registry.IsRejected(err))
	assert.Equal(t, []string{"register-service", "register-resources"}, f.registry.ops())
}

func TestRegisterThenDeregisterReusesID(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.registrar.Run(context.Background(), settings(config.CommandRegister)))
	registeredID := f.registry.calls[0].id

	require.NoError(t, f.registrar.Run(context.Background(), settings(config.CommandDeregister)))

	ops := f.registry.ops()
	assert.Equal(t, []string{"deregister-service", "deregister-resources", "deregister-resources"}, ops[3:])
	assert.Equal(t, registeredID, f.registry.calls[3].id)
	assert.Equal(t, []string{"/api/stockCards/{id}", "/api/stockCards"}, f.registry.calls[4].paths)
	assert.Equal(t, []string{"/api/stockEvents", "/api/reasons"}, f.registry.calls[5].paths)

	_, err := os.Stat(f.store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestDeregisterServiceFailureIsWarning(t *testing.T) {
	f := newFixture(t)
	f.registry.errs["deregister-service"] = &registry.RejectedRequestError{Method: "PUT", StatusCode: 404, Body: "Unknown service ID"}
	require.NoError(t, os.WriteFile(f.store.Path(), []byte("stockmanagement-1"), 0o644))

	require.NoError(t, f.registrar.Run(context.Background(), settings(config.CommandDeregister)))

	assert.Equal(t, []string{"deregister-service", "deregister-resources", "deregister-resources"}, f.registry.ops())
	warnings := f.logs.FilterLevelExact(zap.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "stockmanagement-1", warnings[0].ContextMap()["service_id"])

	_, err := os.Stat(f.store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestDeregisterResourceFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.registry.errs["deregister-resources"] = &registry.TransientBackendError{StatusCode: 500}
	require.NoError(t, os.WriteFile(f.store.Path(), []byte("stockmanagement-1"), 0o644))

	err := f.registrar.Run(context.Background(), settings(config.CommandDeregister))
	require.Error(t, err)
	assert.Equal(t, []string{"deregister-service", "deregister-resources"}, f.registry.ops())

	_, statErr := os.Stat(f.store.Path())
	assert.NoError(t, statErr, "identity file is only cleared after a successful deregistration")
}

func TestRunRejectsInvalidSettings(t *testing.T) {
	f := newFixture(t)

	for _, s := range []*config.Settings{
		{Service: config.ServiceConfig{Name: "x"}, Paths: []string{"/a"}},
		{Command: "restart", Service: config.ServiceConfig{Name: "x"}, Paths: []string{"/a"}},
		{Command: config.CommandRegister, Paths: []string{"/a"}},
		{Command: config.CommandRegister, Service: config.ServiceConfig{Name: "x"}},
	} {
		err := f.registrar.Run(context.Background(), s)
		var cfgErr *config.ConfigurationError
		assert.True(t, errors.As(err, &cfgErr), "settings %+v", s)
	}
	assert.Empty(t, f.registry.ops())
}

func TestResolveCheckURL(t *testing.T) {
	assert.Equal(t, "http://10.0.0.8:8080/health", ResolveCheckURL("http://HOST:PORT/health", "10.0.0.8", 8080))
	assert.Equal(t, "http://svc.local:80/health", ResolveCheckURL("http://svc.local:PORT/health", "10.0.0.8", 80))
	assert.Equal(t, "http://static/health", ResolveCheckURL("http://static/health", "10.0.0.8", 80))
}

func TestFirstIPv4(t *testing.T) {
	mustCIDR := func(s string) net.Addr {
		ip, ipNet, err := net.ParseCIDR(s)
		require.NoError(t, err)
		ipNet.IP = ip
		return ipNet
	}

	assert.Equal(t, "192.168.1.5", firstIPv4([]net.Addr{
		mustCIDR("127.0.0.1/8"),
		mustCIDR("fe80::1/64"),
		mustCIDR("192.168.1.5/24"),
		mustCIDR("10.0.0.1/8"),
	}))
	assert.Equal(t, "127.0.0.1", firstIPv4([]net.Addr{mustCIDR("127.0.0.1/8")}))
}

func TestLocalAddress(t *testing.T) {
	addr, err := LocalAddress()
	require.NoError(t, err)
	assert.NotNil(t, net.ParseIP(addr), fmt.Sprintf("%q is not an IP", addr))
}

func TestNewUsesNamedLogger(t *testing.T) {
	r := New(newFakeRegistry(), identity.NewStore(filepath.Join(t.TempDir(), "id")), fakeLoader{}, zaptest.NewLogger(t).Sugar())
	assert.NotNil(t, r.localAddress)
}

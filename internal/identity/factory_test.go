package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/easybody/auth-gateway/internal/config"
	"github.com/easybody/auth-gateway/internal/session"
	"github.com/easybody/auth-gateway/internal/storage"
)

func testConfig(useMock bool) config.Config {
	return config.Config{
		Auth: config.AuthConfig{UseMock: useMock},
		Mock: config.MockConfig{AutoConfirm: true, SeedDefaultUsers: true, DefaultPassword: "password123", ForcedFailureCode: "000000"},
	}
}

func TestFactorySelectsMock(t *testing.T) {
	mem := storage.NewMemory()
	f, err := NewFactory(testConfig(true), FactoryDeps{Credentials: NewCredentialStore(mem, bcrypt.MinCost)})
	require.NoError(t, err)
	assert.Equal(t, "mock", f.Name())

	p := f.Bind(session.NewManager(storage.Device(mem, "d1")))
	_, ok := p.(*MockProvider)
	assert.True(t, ok)
}

func TestFactorySelectsRemote(t *testing.T) {
	f, err := NewFactory(testConfig(false), FactoryDeps{Cognito: &fakeCognito{}})
	require.NoError(t, err)
	assert.Equal(t, "cognito", f.Name())

	p := f.Bind(session.NewManager(storage.NewMemory()))
	_, ok := p.(*RemoteProvider)
	assert.True(t, ok)
}

func TestFactoryRequiresCollaborators(t *testing.T) {
	_, err := NewFactory(testConfig(true), FactoryDeps{})
	assert.Error(t, err)
	_, err = NewFactory(testConfig(false), FactoryDeps{})
	assert.Error(t, err)
}

func TestBoundProvidersShareIdentitiesButNotSessions(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	creds := NewCredentialStore(mem, bcrypt.MinCost)
	f, err := NewFactory(testConfig(true), FactoryDeps{Credentials: creds})
	require.NoError(t, err)
	require.NoError(t, SeedDefaults(ctx, testConfig(true), creds, zap.NewNop()))

	laptop := f.Bind(session.NewManager(storage.Device(mem, "laptop")))
	phone := f.Bind(session.NewManager(storage.Device(mem, "phone")))

	_, err = laptop.SignIn(ctx, "trainer@test.com", "password123")
	require.NoError(t, err)

	u, err := laptop.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	u, err = phone.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	_, err = phone.SignUp(ctx, "new@test.com", "Password123", clientProfile)
	require.NoError(t, err)
	_, err = laptop.SignIn(ctx, "new@test.com", "Password123")
	assert.NoError(t, err)
}

func TestSeedDefaultsOnlyForMock(t *testing.T) {
	ctx := context.Background()
	creds := NewCredentialStore(storage.NewMemory(), bcrypt.MinCost)

	require.NoError(t, SeedDefaults(ctx, testConfig(false), creds, zap.NewNop()))
	users, err := creds.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, SeedDefaults(ctx, testConfig(true), creds, zap.NewNop()))
	users, err = creds.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 4)
}

package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chouhanjibanti/interview-live/internal/logger"
	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/utils"
)

type memAccounts struct {
	mu   sync.Mutex
	byID map[string]*models.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[string]*models.Account{}}
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) Create(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[a.ID] = a
	return nil
}

func (m *memAccounts) TouchLastSignIn(_ context.Context, id string) error { return nil }

func (m *memAccounts) delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

func newAuthService(t *testing.T) (AuthService, *memAccounts, *memCache) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	accounts := newMemAccounts()
	c := newMemCache()
	return NewAuthService(accounts, c, logger.New()), accounts, c
}

func TestRegisterThenLogin(t *testing.T) {
	svc, accounts, _ := newAuthService(t)

	pair, err := svc.Register(context.Background(), "ada@example.com", "hunter2!", "")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	acc, err := accounts.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleRecruiter, acc.Role, "role defaults to recruiter")
	assert.NotEqual(t, "hunter2!", acc.PasswordHash)
	assert.NoError(t, utils.CheckPassword(acc.PasswordHash, "hunter2!"))

	_, err = svc.Login(context.Background(), "ada@example.com", "hunter2!")
	assert.NoError(t, err)
	_, err = svc.Login(context.Background(), "ada@example.com", "wrong")
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthService(t)

	_, err := svc.Register(context.Background(), "ada@example.com", "hunter2!", models.RoleCandidate)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "ada@example.com", "other-pass", "")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestRefreshIsSingleUse(t *testing.T) {
	svc, _, _ := newAuthService(t)

	pair, err := svc.Register(context.Background(), "ada@example.com", "hunter2!", "")
	require.NoError(t, err)

	rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.True(t, utils.IsCode(err, utils.CodeAuthExpired), "a consumed token cannot rotate again")
}

func TestRefreshRejectsDeletedAccount(t *testing.T) {
	svc, accounts, _ := newAuthService(t)

	pair, err := svc.Register(context.Background(), "ada@example.com", "hunter2!", "")
	require.NoError(t, err)

	acc, err := accounts.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	accounts.delete(acc.ID)

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.True(t, utils.IsCode(err, utils.CodeAuthExpired))
}

package service

import (
	"context"
	"errors"
	"testing"

	"autosms-dashboard/backend/internal/models"
	"autosms-dashboard/backend/internal/session"
	apperrors "autosms-dashboard/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeAccountRepo struct {
	byProfile  map[string][]models.Account
	listErr    error
	updateErr  error
	botConfigs map[string]models.BotConfig
}

func (r *fakeAccountRepo) ListActiveByProfile(_ context.Context, profileID string) ([]models.Account, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.byProfile[profileID], nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id string) (*models.Account, error) {
	for _, list := range r.byProfile {
		for i := range list {
			if list[i].ID == id {
				account := list[i]
				return &account, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAccountRepo) UpdateBotConfig(_ context.Context, id string, config models.BotConfig) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if r.botConfigs == nil {
		r.botConfigs = make(map[string]models.BotConfig)
	}
	r.botConfigs[id] = config
	return nil
}

func directoryFixture(t *testing.T, repo *fakeAccountRepo) (*DirectoryService, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(nil, testLogger())
	svc := NewDirectoryService(repo, sessions, nil, nil, testLogger())
	return svc, sessions
}

func account(id, profileID string) models.Account {
	return models.Account{ID: id, ProfileID: profileID, Username: "brand-" + id, Status: models.AccountStatusActive}
}

func TestListAccountsSelectsFirstByDefault(t *testing.T) {
	repo := &fakeAccountRepo{byProfile: map[string][]models.Account{
		"profile-1": {account("acc-2", "profile-1"), account("acc-1", "profile-1")},
	}}
	svc, sessions := directoryFixture(t, repo)

	accounts, err := svc.ListAccounts(context.Background(), "profile-1")
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	raw, ok := sessions.ForProfile(context.Background(), "profile-1").ActiveAccountRawID()
	require.True(t, ok)
	assert.Equal(t, "acc-2", raw, "the first listed account becomes the default selection")
}

func TestListAccountsKeepsExistingSelection(t *testing.T) {
	repo := &fakeAccountRepo{byProfile: map[string][]models.Account{
		"profile-1": {account("acc-2", "profile-1"), account("acc-1", "profile-1")},
	}}
	svc, sessions := directoryFixture(t, repo)

	store := sessions.ForProfile(context.Background(), "profile-1")
	chosen := account("acc-1", "profile-1")
	store.SetActiveAccount(context.Background(), &chosen)

	_, err := svc.ListAccounts(context.Background(), "profile-1")
	require.NoError(t, err)

	raw, _ := store.ActiveAccountRawID()
	assert.Equal(t, "acc-1", raw)
}

func TestListAccountsFailureIsTransient(t *testing.T) {
	repo := &fakeAccountRepo{listErr: errors.New("db down")}
	svc, _ := directoryFixture(t, repo)

	_, err := svc.ListAccounts(context.Background(), "profile-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeTransientLoadFailure, apperrors.FromError(err).Code)
}

func TestSelectAccountRejectsForeignAccount(t *testing.T) {
	repo := &fakeAccountRepo{byProfile: map[string][]models.Account{
		"profile-2": {account("acc-9", "profile-2")},
	}}
	svc, _ := directoryFixture(t, repo)

	_, err := svc.SelectAccount(context.Background(), "profile-1", "acc-9")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.FromError(err).Code)
}

func TestSelectAccountAcceptsWrappedID(t *testing.T) {
	repo := &fakeAccountRepo{byProfile: map[string][]models.Account{
		"profile-1": {account("acc-1", "profile-1")},
	}}
	svc, sessions := directoryFixture(t, repo)

	// Ids from a persisted selection arrive in stored form
	selected, err := svc.SelectAccount(context.Background(), "profile-1", "id_acc-1")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", selected.ID)

	raw, ok := sessions.ForProfile(context.Background(), "profile-1").ActiveAccountRawID()
	require.True(t, ok)
	assert.Equal(t, "acc-1", raw)
}

func TestSaveBotConfigRefreshesActiveCopy(t *testing.T) {
	repo := &fakeAccountRepo{byProfile: map[string][]models.Account{
		"profile-1": {account("acc-1", "profile-1")},
	}}
	svc, sessions := directoryFixture(t, repo)

	_, err := svc.SelectAccount(context.Background(), "profile-1", "acc-1")
	require.NoError(t, err)

	cfg := models.BotConfig{Instruction: "Be helpful", Context: "Outdoor gear shop", MaxTokens: 256}
	updated, err := svc.SaveBotConfig(context.Background(), "profile-1", "acc-1", cfg)
	require.NoError(t, err)
	require.NotNil(t, updated.BotConfig)
	assert.Equal(t, "Be helpful", updated.BotConfig.Instruction)
	assert.Equal(t, cfg, repo.botConfigs["acc-1"])

	active := sessions.ForProfile(context.Background(), "profile-1").ActiveAccount()
	require.NotNil(t, active)
	require.NotNil(t, active.BotConfig, "the session copy picks up the new settings")
	assert.Equal(t, "Be helpful", active.BotConfig.Instruction)
}

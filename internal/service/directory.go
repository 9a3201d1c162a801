package service

import (
	"context"
	stderrors "errors"

	"autosms-dashboard/backend/internal/bridge"
	"autosms-dashboard/backend/internal/models"
	"autosms-dashboard/backend/internal/repository"
	"autosms-dashboard/backend/internal/session"
	"autosms-dashboard/backend/pkg/cache"
	"autosms-dashboard/backend/pkg/errors"
	"autosms-dashboard/backend/pkg/logger"

	"gorm.io/gorm"
)

// DirectoryService lists a profile's connected accounts and establishes the
// default selection in the session store.
type DirectoryService struct {
	accounts repository.AccountRepository
	sessions *session.Manager
	bridge   *bridge.Client
	cache    *cache.Cache
	log      *logger.Logger
}

// NewDirectoryService creates a directory service. cache may be nil to
// disable the listing cache.
func NewDirectoryService(
	accounts repository.AccountRepository,
	sessions *session.Manager,
	bridgeClient *bridge.Client,
	listCache *cache.Cache,
	log *logger.Logger,
) *DirectoryService {
	return &DirectoryService{
		accounts: accounts,
		sessions: sessions,
		bridge:   bridgeClient,
		cache:    listCache,
		log:      log,
	}
}

// ListAccounts returns the profile's active accounts, most recently connected
// first. On the first successful load with no active selection, the first
// account becomes the active one.
func (s *DirectoryService) ListAccounts(ctx context.Context, profileID string) ([]models.Account, error) {
	accounts, err := s.listCached(ctx, profileID)
	if err != nil {
		return nil, errors.NewTransientLoadError("Failed to load Instagram accounts")
	}

	store := s.sessions.ForProfile(ctx, profileID)
	if _, ok := store.ActiveAccountRawID(); !ok && len(accounts) > 0 {
		store.SetActiveAccount(ctx, &accounts[0])
	}

	return accounts, nil
}

// SelectAccount makes the given account the active one for the profile
func (s *DirectoryService) SelectAccount(ctx context.Context, profileID, accountID string) (*models.Account, error) {
	account, err := s.ownedAccount(ctx, profileID, accountID)
	if err != nil {
		return nil, err
	}

	store := s.sessions.ForProfile(ctx, profileID)
	store.SetActiveAccount(ctx, account)

	return account, nil
}

// SaveBotConfig persists the automated responder settings for an account and
// refreshes the session store's copy when that account is the active one
func (s *DirectoryService) SaveBotConfig(ctx context.Context, profileID, accountID string, config models.BotConfig) (*models.Account, error) {
	account, err := s.ownedAccount(ctx, profileID, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.UpdateBotConfig(ctx, account.ID, config); err != nil {
		return nil, errors.NewInternalServerError("BOT_CONFIG_SAVE_FAILED", "Failed to save settings")
	}

	account.BotConfig = &config
	s.invalidate(profileID)

	store := s.sessions.ForProfile(ctx, profileID)
	if raw, ok := store.ActiveAccountRawID(); ok && raw == account.ID {
		store.SetActiveAccount(ctx, account)
	}

	return account, nil
}

// ConnectURL asks the OAuth initiation bridge for the URL that starts the
// account connect flow. The redirect itself is the caller's business.
func (s *DirectoryService) ConnectURL(ctx context.Context, profileID string) (string, error) {
	return s.bridge.InstagramAuthURL(ctx, profileID)
}

// ownedAccount fetches an account and verifies ownership and status.
// accountID may arrive in wrapped form from a persisted selection.
func (s *DirectoryService) ownedAccount(ctx context.Context, profileID, accountID string) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, session.UnwrapAccountID(accountID))
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError(errors.CodeNotFound, "Account not found")
		}
		return nil, errors.NewTransientLoadError("Failed to load account")
	}

	if account.ProfileID != profileID || !account.IsActive() {
		return nil, errors.NewNotFoundError(errors.CodeNotFound, "Account not found")
	}

	return account, nil
}

func (s *DirectoryService) listCached(ctx context.Context, profileID string) ([]models.Account, error) {
	key := "accounts:" + profileID

	if s.cache != nil {
		if cached, found := s.cache.Get(key); found {
			if accounts, ok := cached.([]models.Account); ok {
				return accounts, nil
			}
		}
	}

	accounts, err := s.accounts.ListActiveByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(key, accounts)
	}

	return accounts, nil
}

func (s *DirectoryService) invalidate(profileID string) {
	if s.cache != nil {
		s.cache.Delete("accounts:" + profileID)
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keyline-id/keyline/internal/identity"
)

var (
	errMissingDatabase = errors.New("store: database connection required")
	// ErrAccountTaken indicates the provider account is already linked to a user.
	ErrAccountTaken = errors.New("store: provider account already linked")
)

// Store is the gorm-backed lookup service over user profiles and linked
// accounts. It satisfies identity.Lookup; the write operations exist for
// seeding and tests only.
type Store struct {
	db *gorm.DB
}

// NewStore validates the database handle and constructs the store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &Store{db: db}, nil
}

// GetUserWithAccounts returns the user and its linked accounts in creation
// order, or identity.ErrUserNotFound.
func (s *Store) GetUserWithAccounts(ctx context.Context, internalID string) (identity.User, error) {
	var profile UserProfile
	err := s.db.WithContext(ctx).
		Where("internal_id = ?", internalID).
		Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return identity.User{}, fmt.Errorf("%w: %s", identity.ErrUserNotFound, internalID)
	}
	if err != nil {
		return identity.User{}, err
	}

	var records []LinkedAccountRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", internalID).
		Order("position ASC").
		Find(&records).Error; err != nil {
		return identity.User{}, err
	}

	user := identity.User{
		InternalID:     profile.InternalID,
		DisplayName:    profile.DisplayName,
		LinkedAccounts: make([]identity.LinkedAccount, 0, len(records)),
	}
	for _, record := range records {
		user.LinkedAccounts = append(user.LinkedAccounts, identity.LinkedAccount{
			Provider:          identity.AuthMethod(record.Provider),
			ProviderAccountID: record.ProviderAccountID,
			UserID:            record.UserID,
		})
	}
	return user, nil
}

// FindAccounts returns every linked account matching the provider and
// provider account id sets. Result order is unspecified.
func (s *Store) FindAccounts(ctx context.Context, filter identity.AccountFilter) ([]identity.LinkedAccount, error) {
	if len(filter.Providers) == 0 || len(filter.ProviderAccountIDs) == 0 {
		return []identity.LinkedAccount{}, nil
	}

	providers := make([]string, 0, len(filter.Providers))
	for _, provider := range filter.Providers {
		providers = append(providers, provider.String())
	}

	var records []LinkedAccountRecord
	if err := s.db.WithContext(ctx).
		Where("provider IN ? AND provider_account_id IN ?", providers, filter.ProviderAccountIDs).
		Find(&records).Error; err != nil {
		return nil, err
	}

	accounts := make([]identity.LinkedAccount, 0, len(records))
	for _, record := range records {
		accounts = append(accounts, identity.LinkedAccount{
			Provider:          identity.AuthMethod(record.Provider),
			ProviderAccountID: record.ProviderAccountID,
			UserID:            record.UserID,
		})
	}
	return accounts, nil
}

// CreateUser persists a user profile. An empty internal id is replaced with
// a generated UUIDv7; the effective id is returned.
func (s *Store) CreateUser(ctx context.Context, internalID, displayName string) (string, error) {
	id := strings.TrimSpace(internalID)
	if id == "" {
		generated, err := uuid.NewV7()
		if err != nil {
			return "", err
		}
		id = generated.String()
	}

	profile := UserProfile{
		InternalID:  id,
		DisplayName: strings.TrimSpace(displayName),
	}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return "", err
	}
	return id, nil
}

// LinkAccount appends a provider account to the user's linked account
// sequence. The position is assigned from the current sequence length so
// creation order is explicit rather than incidental.
func (s *Store) LinkAccount(ctx context.Context, userID string, provider identity.AuthMethod, providerAccountID string) error {
	var existing LinkedAccountRecord
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", provider.String(), providerAccountID).
		Take(&existing).Error
	if err == nil {
		return fmt.Errorf("%w: %s/%s", ErrAccountTaken, provider, providerAccountID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&LinkedAccountRecord{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return err
	}

	record := LinkedAccountRecord{
		Provider:          provider.String(),
		ProviderAccountID: providerAccountID,
		UserID:            userID,
		Position:          int(count),
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

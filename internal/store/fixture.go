package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/keyline-id/keyline/internal/identity"
)

// Fixture is the JSON document consumed by the seed command.
type Fixture struct {
	Users []FixtureUser `json:"users"`
}

// FixtureUser declares one user and its linked accounts in creation order.
// InternalID may be empty, in which case one is generated.
type FixtureUser struct {
	InternalID     string           `json:"internal_id"`
	DisplayName    string           `json:"display_name"`
	LinkedAccounts []FixtureAccount `json:"linked_accounts"`
}

// FixtureAccount declares one provider-issued account link.
type FixtureAccount struct {
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"provider_account_id"`
}

// FixtureSummary reports how many rows a fixture load created.
type FixtureSummary struct {
	Users          int
	LinkedAccounts int
}

// LoadFixture reads the fixture file and persists its users and linked
// accounts through the store. Provider tags are validated against the closed
// auth method set before anything is written for the user.
func LoadFixture(ctx context.Context, s *Store, path string) (FixtureSummary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FixtureSummary{}, err
	}

	var fixture Fixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return FixtureSummary{}, fmt.Errorf("store: invalid fixture %s: %w", path, err)
	}

	summary := FixtureSummary{}
	for _, fixtureUser := range fixture.Users {
		providers := make([]identity.AuthMethod, 0, len(fixtureUser.LinkedAccounts))
		for _, account := range fixtureUser.LinkedAccounts {
			provider, err := identity.ParseAuthMethod(account.Provider)
			if err != nil {
				return summary, err
			}
			if provider.IsLocal() {
				return summary, fmt.Errorf("%w: local accounts are not linked", identity.ErrInvalidAuthMethod)
			}
			providers = append(providers, provider)
		}

		userID, err := s.CreateUser(ctx, fixtureUser.InternalID, fixtureUser.DisplayName)
		if err != nil {
			return summary, err
		}
		summary.Users++

		for idx, account := range fixtureUser.LinkedAccounts {
			if err := s.LinkAccount(ctx, userID, providers[idx], account.ProviderAccountID); err != nil {
				return summary, err
			}
			summary.LinkedAccounts++
		}
	}

	return summary, nil
}

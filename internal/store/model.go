package store

import "time"

// UserProfile is the persisted local account record.
type UserProfile struct {
	InternalID  string    `gorm:"column:internal_id;primaryKey;size:190;not null"`
	DisplayName string    `gorm:"column:display_name;size:320"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user profiles.
func (UserProfile) TableName() string {
	return "user_profiles"
}

// LinkedAccountRecord maps a provider-issued account to its owning user.
// Position encodes creation order within a user; position 0 is the signup
// account and stays authoritative for identity projection.
type LinkedAccountRecord struct {
	Provider          string    `gorm:"column:provider;primaryKey;size:32;not null"`
	ProviderAccountID string    `gorm:"column:provider_account_id;primaryKey;size:190;not null"`
	UserID            string    `gorm:"column:user_id;size:190;not null;index"`
	Position          int       `gorm:"column:position;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing linked accounts.
func (LinkedAccountRecord) TableName() string {
	return "linked_accounts"
}

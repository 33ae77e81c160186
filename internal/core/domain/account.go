package domain

import "time"

// ProviderGoogleDrive is the only provider linked accounts currently use.
const ProviderGoogleDrive = "google_drive"

// AccountStatus is the connection status of a linked account.
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusError   AccountStatus = "error"
	AccountStatusRevoked AccountStatus = "revoked"
)

// IsValid reports whether s is a known status.
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountStatusActive, AccountStatusError, AccountStatusRevoked:
		return true
	}
	return false
}

// LinkedAccount is an external storage account connected to a local user.
// The pair (ProviderAccountID, UserID) is unique.
type LinkedAccount struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	Provider          string        `json:"provider"`
	ProviderAccountID string        `json:"provider_account_id"`
	Email             string        `json:"email"`
	DisplayName       string        `json:"display_name,omitempty"`
	Status            AccountStatus `json:"status"`
	Scopes            []string      `json:"scopes,omitempty"`

	AccessToken  string     `json:"-"` // Never serialize
	RefreshToken string     `json:"-"` // Never serialize
	TokenExpiry  *time.Time `json:"token_expiry,omitempty"`

	// Quota counters are advisory, refreshed from the provider on demand.
	QuotaUsed  int64 `json:"quota_used"`
	QuotaTotal int64 `json:"quota_total"`

	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// AccountSummary is the token-free projection of a LinkedAccount.
type AccountSummary struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	Provider          string        `json:"provider"`
	ProviderAccountID string        `json:"provider_account_id"`
	Email             string        `json:"email"`
	DisplayName       string        `json:"display_name,omitempty"`
	Status            AccountStatus `json:"status"`
	Scopes            []string      `json:"scopes,omitempty"`
	QuotaUsed         int64         `json:"quota_used"`
	QuotaTotal        int64         `json:"quota_total"`
	LastSyncAt        *time.Time    `json:"last_sync_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// ToSummary converts a LinkedAccount to an AccountSummary.
func (a *LinkedAccount) ToSummary() *AccountSummary {
	return &AccountSummary{
		ID:                a.ID,
		UserID:            a.UserID,
		Provider:          a.Provider,
		ProviderAccountID: a.ProviderAccountID,
		Email:             a.Email,
		DisplayName:       a.DisplayName,
		Status:            a.Status,
		Scopes:            a.Scopes,
		QuotaUsed:         a.QuotaUsed,
		QuotaTotal:        a.QuotaTotal,
		LastSyncAt:        a.LastSyncAt,
		CreatedAt:         a.CreatedAt,
	}
}

// IsRevoked returns true if the account needs to be reconnected.
func (a *LinkedAccount) IsRevoked() bool {
	return a.Status == AccountStatusRevoked
}

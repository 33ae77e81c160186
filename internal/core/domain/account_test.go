package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAccountStatusIsValid(t *testing.T) {
	tests := []struct {
		status   AccountStatus
		expected bool
	}{
		{AccountStatusActive, true},
		{AccountStatusError, true},
		{AccountStatusRevoked, true},
		{AccountStatus("paused"), false},
		{AccountStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if tt.status.IsValid() != tt.expected {
				t.Errorf("expected IsValid() = %v for %q", tt.expected, tt.status)
			}
		})
	}
}

func TestLinkedAccountNeverSerializesTokens(t *testing.T) {
	acc := &LinkedAccount{
		ID:           "acc-1",
		UserID:       "user-1",
		Email:        "a@example.com",
		Status:       AccountStatusActive,
		AccessToken:  "ya29.secret-access",
		RefreshToken: "1//secret-refresh",
	}

	data, err := json.Marshal(acc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("serialized account leaks a token: %s", data)
	}

	data, err = json.Marshal(acc.ToSummary())
	if err != nil {
		t.Fatalf("marshal summary: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("summary leaks a token: %s", data)
	}
}

func TestLinkedAccountToSummary(t *testing.T) {
	now := time.Now()
	acc := &LinkedAccount{
		ID:                "acc-1",
		UserID:            "user-1",
		Provider:          ProviderGoogleDrive,
		ProviderAccountID: "1234",
		Email:             "a@example.com",
		Status:            AccountStatusError,
		QuotaUsed:         10,
		QuotaTotal:        100,
		LastSyncAt:        &now,
		CreatedAt:         now,
	}

	summary := acc.ToSummary()
	if summary.ID != acc.ID || summary.UserID != acc.UserID || summary.Email != acc.Email {
		t.Errorf("identity fields not copied: %+v", summary)
	}
	if summary.Status != AccountStatusError {
		t.Errorf("expected status error, got %s", summary.Status)
	}
	if summary.QuotaUsed != 10 || summary.QuotaTotal != 100 {
		t.Errorf("quota not copied: %+v", summary)
	}
	if summary.LastSyncAt == nil || !summary.LastSyncAt.Equal(now) {
		t.Error("expected LastSyncAt to be copied")
	}
}

func TestAuthFlowStateHasRequiredFields(t *testing.T) {
	tests := []struct {
		name     string
		state    AuthFlowState
		expected bool
	}{
		{"complete", AuthFlowState{UserID: "u", CSRFToken: "c", Nonce: "n"}, true},
		{"missing user", AuthFlowState{CSRFToken: "c", Nonce: "n"}, false},
		{"missing csrf", AuthFlowState{UserID: "u", Nonce: "n"}, false},
		{"missing nonce", AuthFlowState{UserID: "u", CSRFToken: "c"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.state.HasRequiredFields() != tt.expected {
				t.Errorf("expected HasRequiredFields() = %v", tt.expected)
			}
		})
	}
}

func TestFileStatsAdd(t *testing.T) {
	total := FileStats{}
	total.Add(FileStats{TotalFiles: 2, DuplicateFiles: 1, TotalSize: 150})
	total.Add(FileStats{TotalFiles: 3, DuplicateFiles: 0, TotalSize: 50})

	want := FileStats{TotalFiles: 5, DuplicateFiles: 1, TotalSize: 200}
	if total != want {
		t.Errorf("expected %+v, got %+v", want, total)
	}
}

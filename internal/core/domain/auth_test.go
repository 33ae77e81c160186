package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAuthFlowStateIssuedAt(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 250_000_000, time.UTC)
	state := &AuthFlowState{Timestamp: issued.UnixMilli()}

	if !state.IssuedAt().Equal(issued) {
		t.Errorf("expected %v, got %v", issued, state.IssuedAt())
	}
}

func TestAuthFlowStateWireFormat(t *testing.T) {
	state := AuthFlowState{
		UserID:    "user-1",
		CSRFToken: "csrf",
		Timestamp: 1700000000000,
		Nonce:     "nonce",
	}

	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"userId", "csrfToken", "timestamp", "nonce"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("expected field %q in %s", key, data)
		}
	}
	if _, ok := fields["meta"]; ok {
		t.Error("expected empty meta to be omitted")
	}
}

package ban

import (
	"testing"
	"time"

	"github.com/kz-league/cs2kz-api/internal/id"
)

func TestFromServerAndFromAdmin(t *testing.T) {
	cb := FromServer(id.ServerID(7), id.PluginVersionID(3))
	if cb.Kind != CreatedByServer {
		t.Errorf("Kind = %v, want CreatedByServer", cb.Kind)
	}
	if cb.ServerID == nil || *cb.ServerID != 7 {
		t.Errorf("ServerID = %v, want 7", cb.ServerID)
	}
	if cb.PluginVersion == nil || *cb.PluginVersion != 3 {
		t.Errorf("PluginVersion = %v, want 3", cb.PluginVersion)
	}
	if cb.AdminID != nil {
		t.Errorf("AdminID = %v, want nil", cb.AdminID)
	}

	admin := FromAdmin(id.SteamID(76561197960265729))
	if admin.Kind != CreatedByAdmin {
		t.Errorf("Kind = %v, want CreatedByAdmin", admin.Kind)
	}
	if admin.AdminID == nil || *admin.AdminID != id.SteamID(76561197960265729) {
		t.Errorf("AdminID = %v, want 76561197960265729", admin.AdminID)
	}
	if admin.ServerID != nil || admin.PluginVersion != nil {
		t.Errorf("expected server fields to be nil for an admin-created ban")
	}
}

func TestBanActive(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		ban    Ban
		active bool
	}{
		{"permanent, no unban", Ban{ExpiresAt: nil}, true},
		{"expires in the future", Ban{ExpiresAt: &future}, true},
		{"already expired", Ban{ExpiresAt: &past}, false},
		{"reverted permanent ban", Ban{ExpiresAt: nil, Unban: &Unban{Reason: "mistake"}}, false},
		{"reverted before expiry", Ban{ExpiresAt: &future, Unban: &Unban{Reason: "mistake"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ban.Active(now); got != tt.active {
				t.Errorf("Active() = %v, want %v", got, tt.active)
			}
		})
	}
}

package id

import "testing"

func TestParseSteamIDDecimal(t *testing.T) {
	got, err := ParseSteamID("76561197960265729")
	if err != nil {
		t.Fatalf("ParseSteamID error: %v", err)
	}
	if got != SteamID(76561197960265729) {
		t.Errorf("ParseSteamID() = %d, want %d", got, 76561197960265729)
	}
}

func TestParseSteamIDDecimalBelowRange(t *testing.T) {
	if _, err := ParseSteamID("123"); err == nil {
		t.Errorf("expected an error for a value below the valid range")
	}
}

func TestParseSteamIDLegacyForm(t *testing.T) {
	tests := []struct {
		input string
		want  SteamID
	}{
		{"STEAM_1:1:0", SteamID(steamID64Base + 1)},
		{"STEAM_1:0:1", SteamID(steamID64Base + 2)},
		{"steam_1:0:1", SteamID(steamID64Base + 2)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSteamID(tt.input)
			if err != nil {
				t.Fatalf("ParseSteamID(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseSteamID(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSteamIDInvalidForms(t *testing.T) {
	tests := []string{
		"",
		"not-a-steam-id",
		"STEAM_1:2:5",
		"STEAM_1:x:5",
		"STEAM_1:0:x",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseSteamID(input); err == nil {
				t.Errorf("ParseSteamID(%q) expected error, got nil", input)
			}
		})
	}
}

func TestSteamIDStringRoundTrip(t *testing.T) {
	original := "STEAM_1:1:12345"
	parsed, err := ParseSteamID(original)
	if err != nil {
		t.Fatalf("ParseSteamID error: %v", err)
	}
	if got := parsed.String(); got != original {
		t.Errorf("String() = %q, want %q", got, original)
	}
}

func TestSteamIDMarshalUnmarshalText(t *testing.T) {
	want := SteamID(76561197960265729)

	text, err := want.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText error: %v", err)
	}

	var got SteamID
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText error: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %d, want %d", got, want)
	}
}

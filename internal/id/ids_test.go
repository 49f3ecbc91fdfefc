package id

import "testing"

func TestSessionIDStringParseRoundTrip(t *testing.T) {
	want := NewSessionID()

	parsed, err := ParseSessionID(want.String())
	if err != nil {
		t.Fatalf("ParseSessionID error: %v", err)
	}
	if parsed != want {
		t.Errorf("round trip = %v, want %v", parsed, want)
	}
}

func TestParseSessionIDRejectsGarbage(t *testing.T) {
	if _, err := ParseSessionID("not-a-ulid"); err == nil {
		t.Errorf("expected an error for a malformed ULID")
	}
}

func TestSessionIDValueAndScan(t *testing.T) {
	want := NewSessionID()

	v, err := want.Value()
	if err != nil {
		t.Fatalf("Value error: %v", err)
	}
	s, ok := v.(string)
	if !ok {
		t.Fatalf("Value() returned %T, want string", v)
	}

	var got SessionID
	if err := got.Scan(s); err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if got != want {
		t.Errorf("Scan(Value()) = %v, want %v", got, want)
	}
}

func TestSessionIDScanVariants(t *testing.T) {
	want := NewSessionID()

	var fromBytes SessionID
	if err := fromBytes.Scan([]byte(want.String())); err != nil {
		t.Fatalf("Scan([]byte) error: %v", err)
	}
	if fromBytes != want {
		t.Errorf("Scan([]byte) = %v, want %v", fromBytes, want)
	}

	var fromNil SessionID
	fromNil = want
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if fromNil != (SessionID{}) {
		t.Errorf("Scan(nil) should reset to the zero value, got %v", fromNil)
	}

	var fromBad SessionID
	if err := fromBad.Scan(42); err == nil {
		t.Errorf("expected an error scanning an unsupported type")
	}
}

func TestSessionIDMarshalUnmarshalText(t *testing.T) {
	want := NewSessionID()

	text, err := want.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText error: %v", err)
	}

	var got SessionID
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText error: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}

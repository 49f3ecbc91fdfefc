package problem

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestNewSetsTypeTitleAndStatus(t *testing.T) {
	d := New(PlayerAlreadyBanned, "player 1 is already banned")

	if d.Type != baseURI+"player-already-banned" {
		t.Errorf("Type = %q, want %q", d.Type, baseURI+"player-already-banned")
	}
	if d.Title != "player is already banned" {
		t.Errorf("Title = %q", d.Title)
	}
	if d.Status != 409 {
		t.Errorf("Status = %d, want 409", d.Status)
	}
	if d.Detail != "player 1 is already banned" {
		t.Errorf("Detail = %q", d.Detail)
	}
}

func TestWithExtensions(t *testing.T) {
	d := New(MapIsFrozen, "").WithExtensions(map[string]any{"map_id": 7})
	if d.Extensions["map_id"] != 7 {
		t.Errorf("Extensions[map_id] = %v, want 7", d.Extensions["map_id"])
	}
}

func TestMarshalJSONFlattensExtensions(t *testing.T) {
	d := New(ResourceNotFound, "map not found").WithExtensions(map[string]any{"map_id": 5})

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if decoded["map_id"] != float64(5) {
		t.Errorf("map_id = %v, want 5", decoded["map_id"])
	}
	if decoded["type"] != d.Type {
		t.Errorf("type = %v, want %v", decoded["type"], d.Type)
	}
	if decoded["detail"] != "map not found" {
		t.Errorf("detail = %v", decoded["detail"])
	}
}

func TestMarshalJSONOmitsEmptyDetail(t *testing.T) {
	d := New(Internal, "")
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if _, ok := decoded["detail"]; ok {
		t.Errorf("expected no detail member when Detail is empty")
	}
}

func TestWriteSetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteType(rec, nil, PlayerAlreadyBanned, "already banned")

	if got := rec.Header().Get("Content-Type"); got != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", got)
	}
	if rec.Code != 409 {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestWriteDefaultsToInternalServerErrorWithoutStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, nil, Details{Type: baseURI + "internal", Title: "internal"})

	if rec.Code != 500 {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestEveryDefinedTypeHasATitleAndStatus(t *testing.T) {
	types := []Type{
		BadRequest, MissingPathParameters, InvalidPathParameters, InvalidQueryString,
		MissingHeader, Unauthorized, ResourceNotFound, DeserializeRequestBody,
		ServerNameAlreadyInUse, ServerHostAndPortAlreadyInUse, InvalidMapperID,
		InvalidMapperName, MapIsFrozen, InvalidCourseID, UnknownPlayerToBan,
		PlayerAlreadyBanned, BanExpiresInThePast, BanAlreadyExpired, BanAlreadyReverted,
		PluginVersionAlreadyExists, PluginVersionIsOlderThanLatest, SteamAPIError, Internal,
	}

	for _, typ := range types {
		d := New(typ, "")
		if d.Title == "" {
			t.Errorf("type %q has no title", typ)
		}
		if d.Status == 0 {
			t.Errorf("type %q has no status", typ)
		}
	}
}

// Package problem implements RFC 9457 "application/problem+json" error
// responses, generalized from the teacher's plain JSON error envelope
// (httpserver.RespondError) into the typed, closed-set shape the API
// contract requires.
package problem

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Type is a member of the closed set of problem type fragments the API may
// return. The base URI is fixed; only the fragment varies per response.
type Type string

// The complete, closed set of problem types. No handler may return a type
// outside this set.
const (
	BadRequest                    Type = "bad-request"
	MissingPathParameters         Type = "missing-path-parameters"
	InvalidPathParameters         Type = "invalid-path-parameters"
	InvalidQueryString            Type = "invalid-query-string"
	MissingHeader                 Type = "missing-header"
	Unauthorized                  Type = "unauthorized"
	ResourceNotFound               Type = "resource-not-found"
	DeserializeRequestBody        Type = "deserialize-request-body"
	ServerNameAlreadyInUse        Type = "server-name-already-in-use"
	ServerHostAndPortAlreadyInUse Type = "server-host-and-port-already-in-use"
	InvalidMapperID               Type = "invalid-mapper-id"
	InvalidMapperName             Type = "invalid-mapper-name"
	MapIsFrozen                   Type = "map-is-frozen"
	InvalidCourseID                Type = "invalid-course-id"
	UnknownPlayerToBan            Type = "unknown-player-to-ban"
	PlayerAlreadyBanned           Type = "player-already-banned"
	BanExpiresInThePast           Type = "ban-expires-in-the-past"
	BanAlreadyExpired             Type = "ban-already-expired"
	BanAlreadyReverted            Type = "ban-already-reverted"
	PluginVersionAlreadyExists    Type = "plugin-version-already-exists"
	PluginVersionIsOlderThanLatest Type = "plugin-version-is-older-than-latest"
	SteamAPIError                 Type = "steam-api-error"
	Internal                      Type = "internal"
)

const baseURI = "https://docs.cs2kz.org/problems/"

// status is the default HTTP status code associated with each problem type.
// Handlers may override it when constructing a Problem.
var status = map[Type]int{
	BadRequest:                     http.StatusBadRequest,
	MissingPathParameters:          http.StatusBadRequest,
	InvalidPathParameters:          http.StatusBadRequest,
	InvalidQueryString:             http.StatusBadRequest,
	MissingHeader:                  http.StatusBadRequest,
	Unauthorized:                   http.StatusForbidden,
	ResourceNotFound:               http.StatusNotFound,
	DeserializeRequestBody:         http.StatusBadRequest,
	ServerNameAlreadyInUse:         http.StatusConflict,
	ServerHostAndPortAlreadyInUse:  http.StatusConflict,
	InvalidMapperID:                http.StatusBadRequest,
	InvalidMapperName:              http.StatusBadRequest,
	MapIsFrozen:                    http.StatusConflict,
	InvalidCourseID:                http.StatusBadRequest,
	UnknownPlayerToBan:             http.StatusBadRequest,
	PlayerAlreadyBanned:            http.StatusConflict,
	BanExpiresInThePast:            http.StatusBadRequest,
	BanAlreadyExpired:              http.StatusConflict,
	BanAlreadyReverted:             http.StatusConflict,
	PluginVersionAlreadyExists:     http.StatusConflict,
	PluginVersionIsOlderThanLatest: http.StatusConflict,
	SteamAPIError:                  http.StatusBadGateway,
	Internal:                       http.StatusInternalServerError,
}

// titles gives a short human-readable title per problem type.
var titles = map[Type]string{
	BadRequest:                     "bad request",
	MissingPathParameters:          "missing path parameters",
	InvalidPathParameters:          "invalid path parameters",
	InvalidQueryString:             "invalid query string",
	MissingHeader:                  "missing header",
	Unauthorized:                   "insufficient permissions",
	ResourceNotFound:               "resource not found",
	DeserializeRequestBody:         "failed to deserialize request body",
	ServerNameAlreadyInUse:         "server name already in use",
	ServerHostAndPortAlreadyInUse:  "server host and port already in use",
	InvalidMapperID:                "invalid mapper id",
	InvalidMapperName:              "invalid mapper name",
	MapIsFrozen:                    "map is frozen",
	InvalidCourseID:                "invalid course id",
	UnknownPlayerToBan:             "unknown player to ban",
	PlayerAlreadyBanned:            "player is already banned",
	BanExpiresInThePast:            "ban expires in the past",
	BanAlreadyExpired:              "ban has already expired",
	BanAlreadyReverted:             "ban has already been reverted",
	PluginVersionAlreadyExists:     "plugin version already exists",
	PluginVersionIsOlderThanLatest: "plugin version is older than the latest",
	SteamAPIError:                  "steam api error",
	Internal:                       "internal server error",
}

// Details is the RFC 9457 problem document, plus whatever extension members
// a specific error attaches.
type Details struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Extensions map[string]any `json:"-"`
}

// MarshalJSON flattens Extensions into the top-level object, as RFC 9457
// requires extension members to be siblings of the registered fields.
func (d Details) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"type":   d.Type,
		"title":  d.Title,
		"status": d.Status,
	}
	if d.Detail != "" {
		m["detail"] = d.Detail
	}
	for k, v := range d.Extensions {
		m[k] = v
	}
	return json.Marshal(m)
}

// New builds a Details value for t with an optional human-readable detail.
func New(t Type, detail string) Details {
	return Details{
		Type:   baseURI + string(t),
		Title:  titles[t],
		Status: status[t],
		Detail: detail,
	}
}

// WithExtensions attaches extension members and returns the updated value.
func (d Details) WithExtensions(ext map[string]any) Details {
	d.Extensions = ext
	return d
}

// Write writes a problem document as the HTTP response, setting the
// application/problem+json content type and the problem's status code.
func Write(w http.ResponseWriter, logger *slog.Logger, d Details) {
	w.Header().Set("Content-Type", "application/problem+json")
	code := d.Status
	if code == 0 {
		code = http.StatusInternalServerError
	}
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(d); err != nil && logger != nil {
		logger.Error("encoding problem details", "error", err)
	}
}

// WriteType is a convenience wrapper around New+Write for the common case of
// no extension members.
func WriteType(w http.ResponseWriter, logger *slog.Logger, t Type, detail string) {
	Write(w, logger, New(t, detail))
}

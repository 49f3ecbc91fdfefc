package id

import (
	"context"
	"encoding/json"
	"fmt"
)

// Identifier is a tagged union accepted by lookup endpoints that can resolve
// an entity either by its stable name or by its numeric id. Each entity that
// accepts this shape instantiates it with its own ID type; there is no
// shared resolution machinery across entities beyond this struct.
type Identifier[ID any] struct {
	name string
	id   ID
	byID bool
}

// ByName builds an Identifier that resolves by name.
func ByName[ID any](name string) Identifier[ID] {
	return Identifier[ID]{name: name}
}

// ByID builds an Identifier that resolves by id.
func ByID[ID any](v ID) Identifier[ID] {
	return Identifier[ID]{id: v, byID: true}
}

// Name returns the wrapped name and whether this Identifier carries one.
func (i Identifier[ID]) Name() (string, bool) {
	return i.name, !i.byID
}

// ID returns the wrapped id and whether this Identifier carries one.
func (i Identifier[ID]) ID() (ID, bool) {
	return i.id, i.byID
}

// UnmarshalJSON accepts either a JSON string (name) or a JSON number (id).
func (i *Identifier[ID]) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		i.name, i.byID = name, false
		return nil
	}

	var v ID
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("identifier must be a name or an id: %w", err)
	}
	i.id, i.byID = v, true
	return nil
}

// Resolver resolves an Identifier to its canonical ID, looking up by name
// when the Identifier does not already carry an ID.
type Resolver[ID any] func(ctx context.Context, ident Identifier[ID]) (ID, error)

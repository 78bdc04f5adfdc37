// Package oid normalizes document-store record identifiers to their
// canonical 24-hex string form. Entities carry oid.ID everywhere; the
// native ObjectID representation only appears transiently at the store
// boundary.
package oid

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidIdentifier indicates malformed or unsupported identifier input.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// ID is the canonical lowercase hex form of a store record identifier.
// The zero value means "absent", which is valid for optional references
// and distinct from a malformed identifier.
type ID string

// New mints a fresh identifier through the store-native generator.
func New() ID {
	return ID(primitive.NewObjectID().Hex())
}

// Parse normalizes any supported input into a canonical ID.
// Nil and empty strings yield the zero ID. Strings are round-tripped
// through the native type so mixed-case input comes out canonical.
func Parse(v any) (ID, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case ID:
		return Parse(string(val))
	case primitive.ObjectID:
		if val.IsZero() {
			return "", nil
		}
		return ID(val.Hex()), nil
	case string:
		if val == "" {
			return "", nil
		}
		obj, err := primitive.ObjectIDFromHex(val)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, val)
		}
		return ID(obj.Hex()), nil
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidIdentifier, v)
	}
}

func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is absent.
func (id ID) IsZero() bool { return id == "" }

// ObjectID converts to the store-native type. The zero ID maps to the
// native nil identifier.
func (id ID) ObjectID() (primitive.ObjectID, error) {
	if id == "" {
		return primitive.NilObjectID, nil
	}
	obj, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidIdentifier, string(id))
	}
	return obj, nil
}

// MarshalJSON emits the plain string form.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

// UnmarshalJSON validates through the normalization path.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidIdentifier, data)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalBSONValue stores a native ObjectID when set, null when absent.
func (id ID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if id == "" {
		return bson.MarshalValue(primitive.Null{})
	}
	obj, err := id.ObjectID()
	if err != nil {
		return 0, nil, err
	}
	return bson.MarshalValue(obj)
}

// UnmarshalBSONValue accepts a native ObjectID, a hex string, or null.
// Both shapes normalize to the same canonical string.
func (id *ID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*id = ""
		return nil
	case bsontype.ObjectID:
		obj, ok := raw.ObjectIDOK()
		if !ok {
			return fmt.Errorf("%w: truncated object id", ErrInvalidIdentifier)
		}
		parsed, err := Parse(obj)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	case bsontype.String:
		s, ok := raw.StringValueOK()
		if !ok {
			return fmt.Errorf("%w: malformed string value", ErrInvalidIdentifier)
		}
		parsed, err := Parse(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	default:
		return fmt.Errorf("%w: unsupported bson type %s", ErrInvalidIdentifier, t)
	}
}

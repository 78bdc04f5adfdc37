package oid

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseRoundTripIsIdentity(t *testing.T) {
	for i := 0; i < 20; i++ {
		raw := primitive.NewObjectID().Hex()
		id, err := Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if id.String() != raw {
			t.Fatalf("expected identity round trip, got %q from %q", id, raw)
		}
	}
}

func TestParseCanonicalizesCase(t *testing.T) {
	raw := primitive.NewObjectID().Hex()
	id, err := Parse(strings.ToUpper(raw))
	if err != nil {
		t.Fatalf("parse uppercase: %v", err)
	}
	if id.String() != raw {
		t.Fatalf("expected canonical lowercase %q, got %q", raw, id)
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	cases := []any{
		"not-hex",
		"abc123",                    // too short
		strings.Repeat("a", 23),     // one short
		strings.Repeat("a", 25),     // one long
		strings.Repeat("g", 24),     // non-hex alphabet
		42,                          // unsupported type
		[]byte("ffffffffffffffffffffffff"),
	}
	for _, c := range cases {
		if _, err := Parse(c); !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("expected ErrInvalidIdentifier for %v, got %v", c, err)
		}
	}
}

func TestParseAbsentInput(t *testing.T) {
	for _, c := range []any{nil, ""} {
		id, err := Parse(c)
		if err != nil {
			t.Fatalf("expected absent input to be valid, got %v", err)
		}
		if !id.IsZero() {
			t.Fatalf("expected zero id, got %q", id)
		}
	}
}

func TestParseNativeObjectID(t *testing.T) {
	obj := primitive.NewObjectID()
	id, err := Parse(obj)
	if err != nil {
		t.Fatalf("parse native: %v", err)
	}
	if id.String() != obj.Hex() {
		t.Fatalf("expected %q, got %q", obj.Hex(), id)
	}
	back, err := id.ObjectID()
	if err != nil {
		t.Fatalf("back to native: %v", err)
	}
	if back != obj {
		t.Fatalf("expected native round trip")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	id := New()
	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"`+id.String()+`"` {
		t.Fatalf("expected plain string form, got %s", data)
	}
	var decoded ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != id {
		t.Fatalf("expected %q, got %q", id, decoded)
	}
}

func TestJSONUnmarshalRejectsMalformed(t *testing.T) {
	var id ID
	if err := json.Unmarshal([]byte(`"zzz"`), &id); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestBSONRoundTripNative(t *testing.T) {
	type doc struct {
		ID  ID `bson:"_id"`
		Ref ID `bson:"ref,omitempty"`
	}
	id := New()
	data, err := bson.Marshal(doc{ID: id})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// The stored form must be the native type, not a string.
	raw := bson.Raw(data)
	if raw.Lookup("_id").Type != bson.TypeObjectID {
		t.Fatalf("expected native object id storage, got %s", raw.Lookup("_id").Type)
	}
	var decoded doc
	if err := bson.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != id {
		t.Fatalf("expected %q, got %q", id, decoded.ID)
	}
	if !decoded.Ref.IsZero() {
		t.Fatalf("expected absent ref, got %q", decoded.Ref)
	}
}

func TestBSONUnmarshalAcceptsStringForm(t *testing.T) {
	id := New()
	data, err := bson.Marshal(bson.M{"_id": id.String()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		ID ID `bson:"_id"`
	}
	if err := bson.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal string form: %v", err)
	}
	if decoded.ID != id {
		t.Fatalf("expected %q, got %q", id, decoded.ID)
	}
}

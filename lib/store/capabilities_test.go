package store

import (
	"errors"
	"testing"
)

// TestParseDBType tests parsing of known and unknown type names
func TestParseDBType(t *testing.T) {
	for _, typ := range Types {
		got, err := ParseDBType(string(typ))
		if err != nil {
			t.Fatalf("ParseDBType(%q) failed: %v", typ, err)
		}
		if got != typ {
			t.Errorf("ParseDBType(%q) = %q", typ, got)
		}
	}

	if got, err := ParseDBType(" DocStore "); err != nil || got != TypeDocStore {
		t.Errorf("ParseDBType should ignore case and spaces, got %q, %v", got, err)
	}

	for _, name := range []string{"", "graph", "key-value"} {
		if _, err := ParseDBType(name); !errors.Is(err, ErrUnknownDBType) {
			t.Errorf("ParseDBType(%q) should fail with ErrUnknownDBType, got %v", name, err)
		}
	}
}

// TestCapabilityTable tests the capability set of every type
func TestCapabilityTable(t *testing.T) {
	expected := map[DBType]string{
		TypeKeyValue: "get, put, remove",
		TypeFeed:     "add, get, iterator, remove",
		TypeEventLog: "add, get, iterator",
		TypeDocStore: "get, put, putAll, query, remove",
		TypeCounter:  "inc, value",
	}

	for typ, want := range expected {
		if got := Capabilities(typ).String(); got != want {
			t.Errorf("Capabilities(%s) = %q, want %q", typ, got, want)
		}
	}

	if Capabilities("graph").Len() != 0 {
		t.Error("Unknown types should have no capabilities")
	}
}

// TestCapabilitySetIsolation tests that sets do not share state
func TestCapabilitySetIsolation(t *testing.T) {
	a := Capabilities(TypeFeed)
	b := Capabilities(TypeFeed)

	if !a.Equal(b) {
		t.Fatal("Sets of the same type should be equal")
	}
	if a.Equal(Capabilities(TypeEventLog)) {
		t.Error("feed and eventlog must differ")
	}

	list := a.List()
	list[0] = CapInc
	if a.Has(CapInc) {
		t.Error("Modifying List() must not change the set")
	}
}

// TestRequire tests the unsupported capability error
func TestRequire(t *testing.T) {
	if err := Require(TypeCounter, CapInc); err != nil {
		t.Errorf("counter supports inc, got %v", err)
	}

	err := Require(TypeEventLog, CapRemove)
	var uce *UnsupportedCapabilityError
	if !errors.As(err, &uce) {
		t.Fatalf("Expected UnsupportedCapabilityError, got %v", err)
	}
	if uce.Type != TypeEventLog || uce.Capability != CapRemove {
		t.Errorf("Unexpected error fields: %+v", uce)
	}
	if uce.Error() != `database type "eventlog" does not support "remove" (supported: add, get, iterator)` {
		t.Errorf("Unexpected message: %s", uce.Error())
	}
}

// TestEventJSON tests decoding of the raw payload
func TestEventJSON(t *testing.T) {
	event := Event{Name: "write", Data: `{"key":"a","n":2}`}

	var payload struct {
		Key string `json:"key"`
		N   int    `json:"n"`
	}
	if err := event.JSON(&payload); err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	if payload.Key != "a" || payload.N != 2 {
		t.Errorf("Unexpected payload: %+v", payload)
	}

	if err := (Event{Data: "not json"}).JSON(&payload); err == nil {
		t.Error("Expected an error for a malformed payload")
	}
}

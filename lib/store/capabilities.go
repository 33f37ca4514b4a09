package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// --------------------------------------------------------------------------
// Database Types
// --------------------------------------------------------------------------

// DBType is the declared type of an OrbitDB database.
type DBType string

const (
	TypeKeyValue DBType = "keyvalue"
	TypeFeed     DBType = "feed"
	TypeEventLog DBType = "eventlog"
	TypeDocStore DBType = "docstore"
	TypeCounter  DBType = "counter"
)

// Types lists all supported database types.
var Types = []DBType{TypeKeyValue, TypeFeed, TypeEventLog, TypeDocStore, TypeCounter}

// ParseDBType converts a type name as sent by the server into a DBType.
func ParseDBType(s string) (DBType, error) {
	t := DBType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := capabilityTable[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDBType, s)
	}
	return t, nil
}

// --------------------------------------------------------------------------
// Capabilities
// --------------------------------------------------------------------------

// Capability is the name of a type-gated database operation.
type Capability string

const (
	CapGet      Capability = "get"
	CapPut      Capability = "put"
	CapRemove   Capability = "remove"
	CapAdd      Capability = "add"
	CapIterator Capability = "iterator"
	CapPutAll   Capability = "putAll"
	CapQuery    Capability = "query"
	CapInc      Capability = "inc"
	CapValue    Capability = "value"
)

// the docstore row is the superset seen in the gateway (query only in one
// place, putAll+query in the other)
var capabilityTable = map[DBType][]Capability{
	TypeKeyValue: {CapGet, CapPut, CapRemove},
	TypeFeed:     {CapAdd, CapGet, CapIterator, CapRemove},
	TypeEventLog: {CapAdd, CapGet, CapIterator},
	TypeDocStore: {CapGet, CapPut, CapPutAll, CapQuery, CapRemove},
	TypeCounter:  {CapInc, CapValue},
}

// CapabilitySet is an immutable set of capabilities.
type CapabilitySet struct {
	caps map[Capability]struct{}
}

// Capabilities returns the canonical capability set for t.
// Unknown types yield an empty set.
func Capabilities(t DBType) CapabilitySet {
	row := capabilityTable[t]
	set := CapabilitySet{caps: make(map[Capability]struct{}, len(row))}
	for _, c := range row {
		set.caps[c] = struct{}{}
	}
	return set
}

// Has reports whether c is part of the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s.caps[c]
	return ok
}

// Len returns the number of capabilities in the set.
func (s CapabilitySet) Len() int {
	return len(s.caps)
}

// List returns the capabilities sorted by name.
func (s CapabilitySet) List() []Capability {
	list := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

// Equal reports whether both sets contain exactly the same capabilities.
func (s CapabilitySet) Equal(other CapabilitySet) bool {
	if len(s.caps) != len(other.caps) {
		return false
	}
	for c := range s.caps {
		if !other.Has(c) {
			return false
		}
	}
	return true
}

func (s CapabilitySet) String() string {
	names := make([]string, 0, len(s.caps))
	for _, c := range s.List() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrUnknownDBType is returned for a type name outside the capability table.
	ErrUnknownDBType = errors.New("unknown database type")
	// ErrStreamDone is returned by IEventStream.Next once the stream is exhausted or closed.
	ErrStreamDone = errors.New("event stream done")
)

// UnsupportedCapabilityError is returned when an operation is requested from
// a database whose type does not provide it.
type UnsupportedCapabilityError struct {
	Type       DBType
	Capability Capability
}

// Error implements the error interface.
func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("database type %q does not support %q (supported: %s)",
		e.Type, e.Capability, Capabilities(e.Type))
}

// Require returns an UnsupportedCapabilityError if t does not provide c.
func Require(t DBType, c Capability) error {
	if !Capabilities(t).Has(c) {
		return &UnsupportedCapabilityError{Type: t, Capability: c}
	}
	return nil
}

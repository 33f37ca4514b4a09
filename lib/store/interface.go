package store

import (
	"context"
	"iter"

	jsoniter "github.com/json-iterator/go"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore contains the operations that every opened database exposes,
// independent of its type.
type IStore interface {
	// Name returns the name the database was opened with.
	Name() string
	// Address returns the database address used as path prefix for all calls.
	Address() string
	// Type returns the declared type of the database.
	Type() DBType
	// Capabilities returns the type-derived capability set. It never changes.
	Capabilities() CapabilitySet
	// Ready reports whether the server confirmed that the database is open and loaded.
	Ready() bool
	// Cached reports whether the handle was served from a local cache.
	Cached() bool
	// Unloaded reports whether Unload was called on this handle.
	Unloaded() bool

	// Info returns the server-side descriptor of the database.
	Info(ctx context.Context) (info DBInfo, err error)
	// GetPeers returns the peers currently replicating the database.
	GetPeers(ctx context.Context) (peers []any, err error)
	// FindPeers starts a peer search for the database. The options are sent as request body.
	FindPeers(ctx context.Context, options map[string]any) (result any, err error)
	// All returns every entry of the database in the shape the server uses for its type.
	All(ctx context.Context) (entries any, err error)
	// Index returns the raw index of the database.
	Index(ctx context.Context) (index any, err error)
	// Events subscribes to events of this database only.
	Events(ctx context.Context, names ...string) (stream IEventStream, err error)
	// AwaitReady blocks until the server reports the database as ready or ctx ends.
	AwaitReady(ctx context.Context) (err error)
	// Unload closes the database on the server and removes the handle from its client.
	// Calling Unload more than once is a no-op.
	Unload(ctx context.Context) (err error)
}

// IKeyValue is a keyvalue database.
type IKeyValue interface {
	IStore
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) (value any, err error)
	// Put stores value under key.
	Put(ctx context.Context, key string, value any) (result any, err error)
	// Remove deletes key.
	Remove(ctx context.Context, key string) (result any, err error)
}

// IFeed is a feed database.
type IFeed interface {
	IStore
	// Add appends an entry and returns the server reply (usually the entry hash).
	Add(ctx context.Context, entry any) (result any, err error)
	// Get returns the entry with the given hash.
	Get(ctx context.Context, hash string) (entry any, err error)
	// Iterator lists entries according to opts.
	Iterator(ctx context.Context, opts IteratorOptions) (entries []any, err error)
	// Remove deletes the entry with the given hash.
	Remove(ctx context.Context, hash string) (result any, err error)
}

// IEventLog is an append-only eventlog database.
type IEventLog interface {
	IStore
	Add(ctx context.Context, entry any) (result any, err error)
	Get(ctx context.Context, hash string) (entry any, err error)
	Iterator(ctx context.Context, opts IteratorOptions) (entries []any, err error)
}

// IDocStore is a document database. Documents are indexed by the indexBy
// option of the database (default "_id").
type IDocStore interface {
	IStore
	// Get returns all documents matching key.
	Get(ctx context.Context, key string) (docs []any, err error)
	// Put stores a single document.
	Put(ctx context.Context, doc any) (result any, err error)
	// PutAll stores several documents in one request.
	PutAll(ctx context.Context, docs []any) (result any, err error)
	// Query returns the documents matching q.
	Query(ctx context.Context, q Query) (docs []any, err error)
	// Remove deletes the document with the given key.
	Remove(ctx context.Context, key string) (result any, err error)
}

// ICounter is a counter database.
type ICounter interface {
	IStore
	// Inc increments the counter by n. Not safely retriable.
	Inc(ctx context.Context, n int64) (result any, err error)
	// Value returns the current counter value.
	Value(ctx context.Context) (value int64, err error)
}

// IEventStream is a lazily consumed sequence of server-sent events.
// Next returns ErrStreamDone once the stream is exhausted or closed.
// Close releases the underlying connection exactly once and may be called
// from another goroutine to stop a blocked Next.
type IEventStream interface {
	Next() (event Event, err error)
	// All ranges over the remaining events. Breaking out of the loop closes
	// the stream. A malformed payload is yielded as error and the loop goes on.
	All() iter.Seq2[Event, error]
	Close() error
}

// --------------------------------------------------------------------------
// Request and response shapes
// --------------------------------------------------------------------------

// OpenOptions is the JSON body of an open request.
type OpenOptions struct {
	Create           bool           `json:"create,omitempty"`
	Type             DBType         `json:"type,omitempty"`
	AwaitOpen        *bool          `json:"awaitOpen,omitempty"`
	AwaitLoad        *bool          `json:"awaitLoad,omitempty"`
	Overwrite        bool           `json:"overwrite,omitempty"`
	LocalOnly        bool           `json:"localOnly,omitempty"`
	Replicate        *bool          `json:"replicate,omitempty"`
	IndexBy          string         `json:"indexBy,omitempty"`
	AccessController map[string]any `json:"accessController,omitempty"`
}

// DBInfo is the descriptor the server returns for an opened database.
type DBInfo struct {
	Address string         `json:"address"`
	DBName  string         `json:"dbname,omitempty"`
	ID      string         `json:"id,omitempty"`
	Type    DBType         `json:"type"`
	Ready   bool           `json:"ready"`
	Options map[string]any `json:"options,omitempty"`
}

// IteratorOptions selects a range of feed or eventlog entries.
// A nil Limit uses the server default, -1 returns all entries.
type IteratorOptions struct {
	Limit   *int
	Gt      string
	Gte     string
	Lt      string
	Lte     string
	Reverse bool
}

// Query is a docstore query. Comp is one of the gateway comparators
// (eq, ne, gt, gte, lt, lte, mod, range, all).
type Query struct {
	PropName string `json:"propname"`
	Comp     string `json:"comp"`
	Values   []any  `json:"values"`
}

// Event is a single server-sent event.
type Event struct {
	// Name is the SSE event name ("message" if the frame had none).
	Name string
	// ID is the last event id seen on the stream.
	ID string
	// Data is the raw payload of the event.
	Data string
	// Value is Data parsed as JSON.
	Value any
}

// JSON decodes the payload of the event into out
func (e Event) JSON(out any) error {
	return jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(e.Data, out)
}

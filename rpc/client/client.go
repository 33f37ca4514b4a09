package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/ValentinKolb/orbitapi/lib/store"
	"github.com/ValentinKolb/orbitapi/rpc/common"
	"github.com/ValentinKolb/orbitapi/rpc/serializer"
	"github.com/ValentinKolb/orbitapi/rpc/transport"
)

// Client is the entry point of the package. It owns the configuration, the
// transport, the session and the registries of open databases and active
// event subscriptions. All methods are safe for concurrent use.
type Client struct {
	rpcClientAdapter

	// mu guards registry edits, the session fields and the start of Close.
	// It is never held across a request.
	mu       sync.Mutex
	handles  *xsync.MapOf[uint64, DB]
	byName   map[string]uint64
	subs     *xsync.MapOf[uint64, *Subscription]
	nextID   atomic.Uint64
	opens    singleflight.Group
	session  uuid.UUID
	creating bool // a CreateSession request is in flight

	closing atomic.Bool
	closed  atomic.Bool
}

// New creates a client for the gateway described by config and connects the
// transport. The config is copied, later changes to it have no effect.
// A nil serializer selects the encoding/json serializer.
func New(config common.ClientConfig, t transport.IHTTPClientTransport, s serializer.IRPCSerializer) (*Client, error) {
	config = config.Clone()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.New("transport must not be nil")
	}
	if s == nil {
		s = serializer.NewJSONSerializer()
	}

	if err := t.Connect(config); err != nil {
		return nil, err
	}
	Logger.Infof("Connected to %s (serializer=%s, cache=%t)", config.BaseURL, s.Name(), config.UseDBCache)

	return &Client{
		rpcClientAdapter: rpcClientAdapter{
			config:     config,
			transport:  t,
			serializer: s,
		},
		handles: xsync.NewMapOf[uint64, DB](),
		byName:  make(map[string]uint64),
		subs:    xsync.NewMapOf[uint64, *Subscription](),
	}, nil
}

// Config returns a copy of the configuration of the client
func (c *Client) Config() common.ClientConfig {
	return c.config.Clone()
}

// invoke is the call machinery shared by the client and its handles
func (c *Client) invoke(ctx context.Context, req *common.Request, out any) error {
	if c.closed.Load() {
		return common.ErrClientClosed
	}
	return c.invokeRequest(ctx, req, out)
}

// --------------------------------------------------------------------------
// Sessions
// --------------------------------------------------------------------------

// CreateSession registers a new session with the server. It fails with
// common.ErrSessionAlreadyActive if the client already holds one or another
// CreateSession is in flight.
func (c *Client) CreateSession(ctx context.Context) (uuid.UUID, error) {
	c.mu.Lock()
	if c.session != uuid.Nil || c.creating {
		c.mu.Unlock()
		return uuid.Nil, common.ErrSessionAlreadyActive
	}
	c.creating = true
	c.mu.Unlock()

	id := uuid.New()
	err := c.invoke(ctx, common.NewCreateSessionRequest(id.String()), nil)

	c.mu.Lock()
	c.creating = false
	if err == nil {
		c.session = id
	}
	c.mu.Unlock()

	if err != nil {
		return uuid.Nil, err
	}
	Logger.Infof("Created session %s", id)
	return id, nil
}

// DestroySession removes the active session from the server and clears it
// locally. It fails with common.ErrNoActiveSession if there is none.
func (c *Client) DestroySession(ctx context.Context) error {
	id, ok := c.takeSession()
	if !ok {
		return common.ErrNoActiveSession
	}
	return c.destroySession(ctx, id)
}

// takeSession clears the active session and returns it
func (c *Client) takeSession() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.session
	c.session = uuid.Nil
	return id, id != uuid.Nil
}

func (c *Client) destroySession(ctx context.Context, id uuid.UUID) error {
	if err := c.invoke(ctx, common.NewDestroySessionRequest(id.String()), nil); err != nil {
		return err
	}
	Logger.Infof("Destroyed session %s", id)
	return nil
}

// Session returns the active session, ok is false if there is none
func (c *Client) Session() (id uuid.UUID, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.session != uuid.Nil
}

// --------------------------------------------------------------------------
// Client level calls
// --------------------------------------------------------------------------

// ListDatabases returns the databases the server has open
func (c *Client) ListDatabases(ctx context.Context) (dbs []any, err error) {
	err = c.invoke(ctx, common.NewListDBsRequest(), &dbs)
	return dbs, err
}

// Searches returns the running peer searches of the server
func (c *Client) Searches(ctx context.Context) (searches []any, err error) {
	err = c.invoke(ctx, common.NewSearchesRequest(), &searches)
	return searches, err
}

// Events subscribes to the global events with the given names.
// The subscription stays registered until it ends, is closed or the client is closed.
func (c *Client) Events(ctx context.Context, names ...string) (*Subscription, error) {
	return c.subscribe(ctx, common.NewEventsRequest(names), nil, names)
}

// --------------------------------------------------------------------------
// Databases
// --------------------------------------------------------------------------

// OpenDatabase opens (or creates, see store.OpenOptions) the database name.
// With caching enabled a live handle for name is returned unchanged and no
// request is sent; concurrent opens of the same name share one request.
// A caller whose ctx ends stops waiting without failing the others.
func (c *Client) OpenDatabase(ctx context.Context, name string, opts store.OpenOptions) (DB, error) {
	if c.closing.Load() {
		return nil, common.ErrClientClosed
	}
	if !c.config.UseDBCache {
		return c.openNew(ctx, name, opts)
	}

	if db, ok := c.lookup(name); ok {
		Logger.Debugf("Cache hit for db %s", name)
		return db, nil
	}

	// the shared open must survive the caller that started it, every
	// caller only waits as long as its own ctx allows
	shared := context.WithoutCancel(ctx)
	ch := c.opens.DoChan(name, func() (any, error) {
		if db, ok := c.lookup(name); ok {
			return db, nil
		}
		return c.openNew(shared, name, opts)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(DB), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OpenKeyValue opens name and requires it to be a keyvalue database
func (c *Client) OpenKeyValue(ctx context.Context, name string, opts store.OpenOptions) (*KeyValueDB, error) {
	return openAs[*KeyValueDB](ctx, c, name, opts, store.TypeKeyValue)
}

// OpenFeed opens name and requires it to be a feed
func (c *Client) OpenFeed(ctx context.Context, name string, opts store.OpenOptions) (*FeedDB, error) {
	return openAs[*FeedDB](ctx, c, name, opts, store.TypeFeed)
}

// OpenEventLog opens name and requires it to be an eventlog
func (c *Client) OpenEventLog(ctx context.Context, name string, opts store.OpenOptions) (*EventLogDB, error) {
	return openAs[*EventLogDB](ctx, c, name, opts, store.TypeEventLog)
}

// OpenDocStore opens name and requires it to be a docstore
func (c *Client) OpenDocStore(ctx context.Context, name string, opts store.OpenOptions) (*DocStoreDB, error) {
	return openAs[*DocStoreDB](ctx, c, name, opts, store.TypeDocStore)
}

// OpenCounter opens name and requires it to be a counter
func (c *Client) OpenCounter(ctx context.Context, name string, opts store.OpenOptions) (*CounterDB, error) {
	return openAs[*CounterDB](ctx, c, name, opts, store.TypeCounter)
}

// openAs opens name with want as default type and checks the kind of the
// returned handle. A mismatch names the first capability of want the
// database lacks.
func openAs[T DB](ctx context.Context, c *Client, name string, opts store.OpenOptions, want store.DBType) (T, error) {
	var zero T
	if opts.Type == "" {
		opts.Type = want
	}
	db, err := c.OpenDatabase(ctx, name, opts)
	if err != nil {
		return zero, err
	}
	if typed, ok := db.(T); ok {
		return typed, nil
	}

	for _, capability := range store.Capabilities(want).List() {
		if !db.Capabilities().Has(capability) {
			return zero, &store.UnsupportedCapabilityError{Type: db.Type(), Capability: capability}
		}
	}
	return zero, fmt.Errorf("database %s is of type %s, not %s", name, db.Type(), want)
}

func (c *Client) lookup(name string) (DB, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	db, ok := c.handles.Load(id)
	if !ok || db.Unloaded() {
		return nil, false
	}
	return db, true
}

// openNew sends the open request and registers the new handle
func (c *Client) openNew(ctx context.Context, name string, opts store.OpenOptions) (DB, error) {
	var info store.DBInfo
	if err := c.invoke(ctx, common.NewOpenRequest(name, opts), &info); err != nil {
		return nil, err
	}
	db, err := newHandle(c, name, info)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		// Close already ran over the registry, unload the late handle ourselves
		_ = c.invoke(ctx, common.NewUnloadRequest(db.Address()), nil)
		return nil, common.ErrClientClosed
	}
	b := db.base()
	b.id = c.nextID.Add(1)
	c.handles.Store(b.id, db)
	if c.config.UseDBCache {
		c.byName[name] = b.id
	}
	c.mu.Unlock()

	Logger.Infof("Opened db %s (type=%s, address=%s, ready=%t)", name, b.dbType, b.address, b.Ready())
	return db, nil
}

// removeHandle drops d from the registry
func (c *Client) removeHandle(d *baseDB) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles.Delete(d.id)
	if id, ok := c.byName[d.name]; ok && id == d.id {
		delete(c.byName, d.name)
	}
}

// Databases returns a snapshot of the open handles in opening order
func (c *Client) Databases() []DB {
	dbs := make([]DB, 0, c.handles.Size())
	c.handles.Range(func(_ uint64, db DB) bool {
		dbs = append(dbs, db)
		return true
	})
	slices.SortFunc(dbs, func(a, b DB) int { return compareIDs(a.base().id, b.base().id) })
	return dbs
}

// ActiveSubscriptions returns a snapshot of the registered event subscriptions
func (c *Client) ActiveSubscriptions() []*Subscription {
	subs := make([]*Subscription, 0, c.subs.Size())
	c.subs.Range(func(_ uint64, s *Subscription) bool {
		subs = append(subs, s)
		return true
	})
	slices.SortFunc(subs, func(a, b *Subscription) int { return compareIDs(a.id, b.id) })
	return subs
}

// closeSubscriptions closes all subscriptions owned by owner
// (every subscription if owner is nil)
func (c *Client) closeSubscriptions(owner *baseDB) error {
	var result *multierror.Error
	for _, sub := range c.ActiveSubscriptions() {
		if owner != nil && sub.owner != owner {
			continue
		}
		if err := sub.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func compareIDs(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// --------------------------------------------------------------------------
// Close
// --------------------------------------------------------------------------

// Close unloads every open database, closes every event subscription,
// destroys an active session and closes the transport. Every step is
// attempted even if an earlier one fails, the failures are returned
// together. Calling Close again returns nil.
func (c *Client) Close(ctx context.Context) error {
	// closing is set under mu so no open or subscribe can register afterwards
	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		return nil
	}
	c.closing.Store(true)
	c.mu.Unlock()
	Logger.Infof("Closing client for %s", c.config.BaseURL)

	var result *multierror.Error

	for _, db := range c.Databases() {
		if err := db.Unload(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("unload %s: %w", db.Name(), err))
		}
	}

	if err := c.closeSubscriptions(nil); err != nil {
		result = multierror.Append(result, err)
	}

	if id, ok := c.takeSession(); ok {
		if err := c.destroySession(ctx, id); err != nil {
			result = multierror.Append(result, fmt.Errorf("destroy session: %w", err))
		}
	}

	c.closed.Store(true)
	if err := c.transport.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close transport: %w", err))
	}

	if err := result.ErrorOrNil(); err != nil {
		Logger.Warningf("Client closed with errors: %v", err)
		return err
	}
	Logger.Infof("Client closed")
	return nil
}

// Closed reports whether Close has been called
func (c *Client) Closed() bool {
	return c.closing.Load()
}

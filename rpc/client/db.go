package client

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/ValentinKolb/orbitapi/lib/store"
	"github.com/ValentinKolb/orbitapi/rpc/common"
)

// DB is an opened database. The set of implementations is closed: every
// value is one of *KeyValueDB, *FeedDB, *EventLogDB, *DocStoreDB or
// *CounterDB, and only the concrete type carries the type-specific
// operations. Use a type switch or the typed Open* methods of Client.
type DB interface {
	store.IStore
	base() *baseDB
}

// baseDB holds the state shared by all database kinds and implements store.IStore.
//
// State machine: opening -> ready | pending (ready=false) -> unloaded.
// A pending database becomes ready through AwaitReady or Info.
type baseDB struct {
	client  *Client
	id      uint64
	name    string
	address string
	dbType  store.DBType
	caps    store.CapabilitySet
	cached  bool

	ready    atomic.Bool
	unloaded atomic.Bool
}

var errNotReady = errors.New("database not ready")

// newHandle creates the concrete handle for the descriptor returned by the server.
// Capabilities are derived from the type only.
func newHandle(c *Client, name string, info store.DBInfo) (DB, error) {
	t, err := store.ParseDBType(string(info.Type))
	if err != nil {
		return nil, err
	}

	address := info.Address
	if address == "" {
		address = info.ID
	}
	if address == "" {
		address = name
	}

	b := &baseDB{
		client:  c,
		name:    name,
		address: address,
		dbType:  t,
		caps:    store.Capabilities(t),
	}
	b.ready.Store(info.Ready)

	switch t {
	case store.TypeKeyValue:
		return &KeyValueDB{b}, nil
	case store.TypeFeed:
		return &FeedDB{b}, nil
	case store.TypeEventLog:
		return &EventLogDB{b}, nil
	case store.TypeDocStore:
		return &DocStoreDB{b}, nil
	default:
		return &CounterDB{b}, nil
	}
}

func (d *baseDB) base() *baseDB {
	return d
}

// call sends a database scoped request through the owning client
func (d *baseDB) call(ctx context.Context, req *common.Request, out any) error {
	if d.unloaded.Load() {
		return common.ErrUnloaded
	}
	return d.client.invoke(ctx, req, out)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (d *baseDB) Name() string                      { return d.name }
func (d *baseDB) Address() string                   { return d.address }
func (d *baseDB) Type() store.DBType                { return d.dbType }
func (d *baseDB) Capabilities() store.CapabilitySet { return d.caps }
func (d *baseDB) Ready() bool                       { return d.ready.Load() }
func (d *baseDB) Cached() bool                      { return d.cached }
func (d *baseDB) Unloaded() bool                    { return d.unloaded.Load() }

func (d *baseDB) Info(ctx context.Context) (info store.DBInfo, err error) {
	if err = d.call(ctx, common.NewInfoRequest(d.address), &info); err != nil {
		return store.DBInfo{}, err
	}
	d.ready.Store(info.Ready)
	return info, nil
}

func (d *baseDB) GetPeers(ctx context.Context) (peers []any, err error) {
	err = d.call(ctx, common.NewPeersRequest(d.address), &peers)
	return peers, err
}

func (d *baseDB) FindPeers(ctx context.Context, options map[string]any) (result any, err error) {
	err = d.call(ctx, common.NewFindPeersRequest(d.address, options), &result)
	return result, err
}

func (d *baseDB) All(ctx context.Context) (entries any, err error) {
	err = d.call(ctx, common.NewAllRequest(d.address), &entries)
	return entries, err
}

func (d *baseDB) Index(ctx context.Context) (index any, err error) {
	err = d.call(ctx, common.NewIndexRequest(d.address), &index)
	return index, err
}

func (d *baseDB) Events(ctx context.Context, names ...string) (store.IEventStream, error) {
	if d.unloaded.Load() {
		return nil, common.ErrUnloaded
	}
	sub, err := d.client.subscribe(ctx, common.NewDBEventsRequest(d.address, names), d, names)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// AwaitReady polls Info with exponential backoff until the database is ready.
// Only "not ready yet" is polled again, a failing call ends the wait.
func (d *baseDB) AwaitReady(ctx context.Context) error {
	if d.ready.Load() {
		return nil
	}
	Logger.Infof("Waiting for db %s to be ready...", d.name)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0 // bounded by ctx

	return backoff.Retry(func() error {
		info, err := d.Info(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !info.Ready {
			return errNotReady
		}
		return nil
	}, backoff.WithContext(b, ctx))
}

// Unload removes the handle from the client, closes its subscriptions and
// closes the database on the server. The handle is removed even if the
// server call fails. A second call is a no-op.
func (d *baseDB) Unload(ctx context.Context) error {
	if !d.unloaded.CompareAndSwap(false, true) {
		return nil
	}

	// leave the registry first, a concurrent open of the name must not get this handle
	d.client.removeHandle(d)

	var result *multierror.Error
	if err := d.client.closeSubscriptions(d); err != nil {
		result = multierror.Append(result, err)
	}
	if err := d.client.invoke(ctx, common.NewUnloadRequest(d.address), nil); err != nil {
		Logger.Warningf("Failed to unload db %s: %v", d.name, err)
		result = multierror.Append(result, err)
	}

	Logger.Infof("Unloaded db %s (%s)", d.name, d.address)
	return result.ErrorOrNil()
}

package client

import (
	"context"

	"github.com/ValentinKolb/orbitapi/lib/store"
	"github.com/ValentinKolb/orbitapi/rpc/common"
)

// Compile-time checks: every kind exposes exactly the operations of its row
// in the capability table
var (
	_ store.IKeyValue = (*KeyValueDB)(nil)
	_ store.IFeed     = (*FeedDB)(nil)
	_ store.IEventLog = (*EventLogDB)(nil)
	_ store.IDocStore = (*DocStoreDB)(nil)
	_ store.ICounter  = (*CounterDB)(nil)
)

// --------------------------------------------------------------------------
// keyvalue
// --------------------------------------------------------------------------

// KeyValueDB is a keyvalue database (get, put, remove)
type KeyValueDB struct {
	*baseDB
}

func (d *KeyValueDB) Get(ctx context.Context, key string) (value any, err error) {
	err = d.call(ctx, common.NewGetRequest(d.address, key), &value)
	return value, err
}

func (d *KeyValueDB) Put(ctx context.Context, key string, value any) (result any, err error) {
	err = d.call(ctx, common.NewPutRequest(d.address, common.KeyValueEntry{Key: key, Value: value}), &result)
	return result, err
}

func (d *KeyValueDB) Remove(ctx context.Context, key string) (result any, err error) {
	err = d.call(ctx, common.NewRemoveRequest(d.address, key), &result)
	return result, err
}

// --------------------------------------------------------------------------
// feed
// --------------------------------------------------------------------------

// FeedDB is a feed database (add, get, iterator, remove)
type FeedDB struct {
	*baseDB
}

func (d *FeedDB) Add(ctx context.Context, entry any) (result any, err error) {
	err = d.call(ctx, common.NewAddRequest(d.address, entry), &result)
	return result, err
}

func (d *FeedDB) Get(ctx context.Context, hash string) (entry any, err error) {
	err = d.call(ctx, common.NewGetRequest(d.address, hash), &entry)
	return entry, err
}

func (d *FeedDB) Iterator(ctx context.Context, opts store.IteratorOptions) (entries []any, err error) {
	err = d.call(ctx, common.NewIteratorRequest(d.address, opts), &entries)
	return entries, err
}

func (d *FeedDB) Remove(ctx context.Context, hash string) (result any, err error) {
	err = d.call(ctx, common.NewRemoveRequest(d.address, hash), &result)
	return result, err
}

// --------------------------------------------------------------------------
// eventlog
// --------------------------------------------------------------------------

// EventLogDB is an append-only eventlog database (add, get, iterator)
type EventLogDB struct {
	*baseDB
}

func (d *EventLogDB) Add(ctx context.Context, entry any) (result any, err error) {
	err = d.call(ctx, common.NewAddRequest(d.address, entry), &result)
	return result, err
}

func (d *EventLogDB) Get(ctx context.Context, hash string) (entry any, err error) {
	err = d.call(ctx, common.NewGetRequest(d.address, hash), &entry)
	return entry, err
}

func (d *EventLogDB) Iterator(ctx context.Context, opts store.IteratorOptions) (entries []any, err error) {
	err = d.call(ctx, common.NewIteratorRequest(d.address, opts), &entries)
	return entries, err
}

// --------------------------------------------------------------------------
// docstore
// --------------------------------------------------------------------------

// DocStoreDB is a document database (get, put, putAll, query, remove)
type DocStoreDB struct {
	*baseDB
}

func (d *DocStoreDB) Get(ctx context.Context, key string) (docs []any, err error) {
	err = d.call(ctx, common.NewGetRequest(d.address, key), &docs)
	return docs, err
}

func (d *DocStoreDB) Put(ctx context.Context, doc any) (result any, err error) {
	err = d.call(ctx, common.NewPutRequest(d.address, doc), &result)
	return result, err
}

func (d *DocStoreDB) PutAll(ctx context.Context, docs []any) (result any, err error) {
	err = d.call(ctx, common.NewPutAllRequest(d.address, docs), &result)
	return result, err
}

func (d *DocStoreDB) Query(ctx context.Context, q store.Query) (docs []any, err error) {
	err = d.call(ctx, common.NewQueryRequest(d.address, q), &docs)
	return docs, err
}

func (d *DocStoreDB) Remove(ctx context.Context, key string) (result any, err error) {
	err = d.call(ctx, common.NewRemoveRequest(d.address, key), &result)
	return result, err
}

// --------------------------------------------------------------------------
// counter
// --------------------------------------------------------------------------

// CounterDB is a counter database (inc, value). Inc is not idempotent, it
// must not be retried without deduplication by the caller.
type CounterDB struct {
	*baseDB
}

func (d *CounterDB) Inc(ctx context.Context, n int64) (result any, err error) {
	err = d.call(ctx, common.NewIncRequest(d.address, n), &result)
	return result, err
}

func (d *CounterDB) Value(ctx context.Context) (value int64, err error) {
	err = d.call(ctx, common.NewValueRequest(d.address), &value)
	return value, err
}

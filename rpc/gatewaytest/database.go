package gatewaytest

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/ValentinKolb/orbitapi/lib/store"
)

// advertised is the capability list the gateway reports. The client derives
// capabilities from the type and ignores it (docstore omits putAll here).
var advertised = map[store.DBType][]string{
	store.TypeKeyValue: {"get", "put", "remove"},
	store.TypeFeed:     {"add", "get", "iterator", "remove"},
	store.TypeEventLog: {"add", "get", "iterator"},
	store.TypeDocStore: {"get", "put", "query", "remove"},
	store.TypeCounter:  {"inc", "value"},
}

type entry struct {
	Hash  string `json:"hash"`
	Value any    `json:"value"`
}

// database is the in-memory state of one database
type database struct {
	name    string
	address string
	dbType  store.DBType
	indexBy string

	open         bool
	ready        bool
	pendingPolls int
	failUnload   bool

	kv      map[string]any
	kvOrder []string
	entries []entry
	docs    map[string]map[string]any
	counter int64
}

func newDatabase(name, address string, t store.DBType, indexBy string) *database {
	if indexBy == "" {
		indexBy = "_id"
	}
	db := &database{
		name:    name,
		address: address,
		dbType:  t,
		indexBy: indexBy,
		open:    true,
		ready:   true,
	}
	db.reset()
	return db
}

func (db *database) setPending(polls int) {
	db.pendingPolls = polls
	db.ready = polls <= 0
}

func (db *database) reset() {
	db.kv = make(map[string]any)
	db.kvOrder = nil
	db.entries = nil
	db.docs = make(map[string]map[string]any)
	db.counter = 0
}

func (db *database) descriptor() map[string]any {
	return map[string]any{
		"address":      db.address,
		"dbname":       db.name,
		"id":           db.address,
		"type":         db.dbType,
		"ready":        db.ready,
		"capabilities": advertised[db.dbType],
		"options":      map[string]any{"indexBy": db.indexBy},
	}
}

func (g *Gateway) sortedDBs() []*database {
	dbs := make([]*database, 0, len(g.dbs))
	for _, db := range g.dbs {
		dbs = append(dbs, db)
	}
	sort.Slice(dbs, func(i, j int) bool { return dbs[i].address < dbs[j].address })
	return dbs
}

func (g *Gateway) hash() string {
	g.nextHash++
	return fmt.Sprintf("zdpuHash%08d", g.nextHash)
}

// --------------------------------------------------------------------------
// Database level handlers
// --------------------------------------------------------------------------

// handleDB serves db/{address}[/op...]
func (g *Gateway) handleDB(w http.ResponseWriter, r *http.Request, address string, ops []string) {
	if len(ops) == 2 && ops[0] == "events" && r.Method == http.MethodGet {
		g.mu.Lock()
		db, ok := g.dbs[address]
		open := ok && db.open
		g.mu.Unlock()
		if !open {
			writeError(w, http.StatusNotFound, fmt.Sprintf("database %s is not open", address))
			return
		}
		g.serveEvents(w, r, address, ops[1])
		return
	}

	var body any
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
	}

	g.mu.Lock()
	db, ok := g.dbs[address]
	if !ok || !db.open {
		g.mu.Unlock()
		writeError(w, http.StatusNotFound, fmt.Sprintf("database %s is not open", address))
		return
	}
	status, resp, event := g.dispatch(db, r, ops, body)
	g.mu.Unlock()

	if event != nil {
		g.Emit(db.address, "write", event)
	}
	if status >= 400 {
		writeError(w, status, fmt.Sprint(resp))
		return
	}
	writeJSON(w, status, resp)
}

// dispatch executes one operation, g.mu is held. It returns the status, the
// response (the message for errors) and the payload of a write event.
func (g *Gateway) dispatch(db *database, r *http.Request, ops []string, body any) (int, any, any) {
	method := r.Method
	op := ""
	if len(ops) > 0 {
		op = ops[0]
	}

	switch {
	case len(ops) == 0 && method == http.MethodGet:
		if !db.ready {
			db.pendingPolls--
			db.ready = db.pendingPolls <= 0
		}
		return http.StatusOK, db.descriptor(), nil
	case len(ops) == 0 && method == http.MethodDelete:
		if db.failUnload {
			return http.StatusInternalServerError, "unload failed", nil
		}
		db.open = false
		return http.StatusOK, map[string]any{"address": db.address}, nil
	case op == "all" && method == http.MethodGet && len(ops) == 1:
		return http.StatusOK, db.all(), nil
	case op == "index" && method == http.MethodGet && len(ops) == 1:
		return http.StatusOK, db.index(), nil
	case op == "peers" && len(ops) == 1 && method == http.MethodGet:
		return http.StatusOK, []any{"QmPeerA", "QmPeerB"}, nil
	case op == "peers" && len(ops) == 2 && ops[1] == "searches" && method == http.MethodPost:
		search := map[string]any{"address": db.address, "options": body}
		g.searches = append(g.searches, search)
		return http.StatusOK, search, nil
	case len(ops) == 1 && method == http.MethodPost:
		return g.write(db, op, body)
	case op == "iterator" && len(ops) == 1 && method == http.MethodGet:
		return db.iterator(r)
	case op == "value" && len(ops) == 1 && method == http.MethodGet && db.dbType == store.TypeCounter:
		return http.StatusOK, db.counter, nil
	case len(ops) == 1 && method == http.MethodGet:
		return db.get(op)
	case len(ops) == 1 && method == http.MethodDelete:
		return g.remove(db, op)
	}
	return http.StatusNotFound, "route not found", nil
}

func (db *database) unsupported(op string) (int, any, any) {
	return http.StatusMethodNotAllowed, fmt.Sprintf("%s is not supported by %s databases", op, db.dbType), nil
}

func (db *database) all() any {
	switch db.dbType {
	case store.TypeKeyValue:
		m := make(map[string]any, len(db.kv))
		for k, v := range db.kv {
			m[k] = v
		}
		return m
	case store.TypeFeed, store.TypeEventLog:
		return append([]entry{}, db.entries...)
	case store.TypeDocStore:
		keys := make([]string, 0, len(db.docs))
		for k := range db.docs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		docs := make([]any, 0, len(keys))
		for _, k := range keys {
			docs = append(docs, db.docs[k])
		}
		return docs
	default:
		return db.counter
	}
}

func (db *database) index() any {
	switch db.dbType {
	case store.TypeFeed, store.TypeEventLog:
		index := make(map[string]any, len(db.entries))
		for _, e := range db.entries {
			index[e.Hash] = e
		}
		return index
	case store.TypeDocStore:
		return db.docs
	case store.TypeCounter:
		return map[string]any{"value": db.counter}
	default:
		return db.all()
	}
}

func (g *Gateway) write(db *database, op string, body any) (int, any, any) {
	switch {
	case op == "put" && db.dbType == store.TypeKeyValue:
		m, ok := body.(map[string]any)
		key, _ := m["key"].(string)
		if !ok || key == "" {
			return http.StatusBadRequest, "put requires a key", nil
		}
		if _, exists := db.kv[key]; !exists {
			db.kvOrder = append(db.kvOrder, key)
		}
		db.kv[key] = m["value"]
		h := g.hash()
		return http.StatusOK, h, map[string]any{"op": "PUT", "key": key, "value": m["value"], "hash": h}
	case op == "put" && db.dbType == store.TypeDocStore:
		h, err := g.putDoc(db, body)
		if err != nil {
			return http.StatusBadRequest, err.Error(), nil
		}
		return http.StatusOK, h, map[string]any{"op": "PUT", "doc": body, "hash": h}
	case op == "putAll" && db.dbType == store.TypeDocStore:
		docs, ok := body.([]any)
		if !ok {
			return http.StatusBadRequest, "putAll requires an array of documents", nil
		}
		hashes := make([]string, 0, len(docs))
		for _, doc := range docs {
			h, err := g.putDoc(db, doc)
			if err != nil {
				return http.StatusBadRequest, err.Error(), nil
			}
			hashes = append(hashes, h)
		}
		return http.StatusOK, hashes, map[string]any{"op": "PUTALL", "count": len(docs)}
	case op == "add" && (db.dbType == store.TypeFeed || db.dbType == store.TypeEventLog):
		h := g.hash()
		db.entries = append(db.entries, entry{Hash: h, Value: body})
		return http.StatusOK, h, map[string]any{"op": "ADD", "value": body, "hash": h}
	case op == "query" && db.dbType == store.TypeDocStore:
		return db.query(body)
	case op == "inc" && db.dbType == store.TypeCounter:
		m, _ := body.(map[string]any)
		n := int64(1)
		if v, ok := m["val"].(float64); ok {
			n = int64(v)
		}
		db.counter += n
		h := g.hash()
		return http.StatusOK, h, map[string]any{"op": "COUNTER", "value": db.counter, "hash": h}
	}
	return db.unsupported(op)
}

func (g *Gateway) putDoc(db *database, body any) (string, error) {
	doc, ok := body.(map[string]any)
	if !ok {
		return "", fmt.Errorf("document must be an object")
	}
	key, ok := doc[db.indexBy]
	if !ok {
		return "", fmt.Errorf("document must have a %s field", db.indexBy)
	}
	db.docs[fmt.Sprint(key)] = doc
	return g.hash(), nil
}

func (db *database) get(key string) (int, any, any) {
	switch db.dbType {
	case store.TypeKeyValue:
		v, ok := db.kv[key]
		if !ok {
			return http.StatusNotFound, fmt.Sprintf("key %s not found", key), nil
		}
		return http.StatusOK, v, nil
	case store.TypeFeed, store.TypeEventLog:
		for _, e := range db.entries {
			if e.Hash == key {
				return http.StatusOK, e, nil
			}
		}
		return http.StatusNotFound, fmt.Sprintf("entry %s not found", key), nil
	case store.TypeDocStore:
		docs := []any{}
		if doc, ok := db.docs[key]; ok {
			docs = append(docs, doc)
		}
		return http.StatusOK, docs, nil
	}
	return db.unsupported("get")
}

func (g *Gateway) remove(db *database, key string) (int, any, any) {
	switch db.dbType {
	case store.TypeKeyValue:
		delete(db.kv, key)
	case store.TypeFeed:
		kept := db.entries[:0]
		for _, e := range db.entries {
			if e.Hash != key {
				kept = append(kept, e)
			}
		}
		db.entries = kept
	case store.TypeDocStore:
		delete(db.docs, key)
	default:
		return db.unsupported("remove")
	}
	h := g.hash()
	return http.StatusOK, h, map[string]any{"op": "DEL", "key": key, "hash": h}
}

// iterator applies gt/gte/lt/lte (entry hashes), keeps the newest limit
// entries (default 1, -1 for all) and optionally reverses the result.
func (db *database) iterator(r *http.Request) (int, any, any) {
	if db.dbType != store.TypeFeed && db.dbType != store.TypeEventLog {
		return db.unsupported("iterator")
	}
	q := r.URL.Query()

	pos := func(hash string) int {
		for i, e := range db.entries {
			if e.Hash == hash {
				return i
			}
		}
		return -1
	}
	from, to := 0, len(db.entries)
	if h := q.Get("gt"); h != "" {
		from = pos(h) + 1
	}
	if h := q.Get("gte"); h != "" {
		from = max(pos(h), 0)
	}
	if h := q.Get("lt"); h != "" {
		to = max(pos(h), 0)
	}
	if h := q.Get("lte"); h != "" {
		to = pos(h) + 1
	}
	if from > to {
		from = to
	}
	selected := append([]entry{}, db.entries[from:to]...)

	limit := 1
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			return http.StatusBadRequest, "invalid limit", nil
		}
		limit = n
	}
	if limit >= 0 && limit < len(selected) {
		selected = selected[len(selected)-limit:]
	}
	if q.Get("reverse") == "true" {
		for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
			selected[i], selected[j] = selected[j], selected[i]
		}
	}
	return http.StatusOK, selected, nil
}

// query supports the comparisons eq, ne, gt, gte, lt, lte and all
func (db *database) query(body any) (int, any, any) {
	var q store.Query
	raw, _ := json.Marshal(body)
	if err := json.Unmarshal(raw, &q); err != nil {
		return http.StatusBadRequest, "invalid query", nil
	}
	if q.Comp != "all" && len(q.Values) == 0 {
		return http.StatusBadRequest, "query requires a value", nil
	}

	keys := make([]string, 0, len(db.docs))
	for k := range db.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []any{}
	for _, k := range keys {
		doc := db.docs[k]
		if q.Comp == "all" {
			result = append(result, doc)
			continue
		}
		v, ok := doc[q.PropName]
		if !ok {
			continue
		}
		match, err := compare(v, q.Comp, q.Values[0])
		if err != nil {
			return http.StatusBadRequest, err.Error(), nil
		}
		if match {
			result = append(result, doc)
		}
	}
	return http.StatusOK, result, nil
}

func compare(v any, comp string, operand any) (bool, error) {
	switch comp {
	case "eq":
		return fmt.Sprint(v) == fmt.Sprint(operand), nil
	case "ne":
		return fmt.Sprint(v) != fmt.Sprint(operand), nil
	}
	a, okA := v.(float64)
	b, okB := operand.(float64)
	if !okA || !okB {
		return false, fmt.Errorf("comparison %s requires numbers", comp)
	}
	switch comp {
	case "gt":
		return a > b, nil
	case "gte":
		return a >= b, nil
	case "lt":
		return a < b, nil
	case "lte":
		return a <= b, nil
	}
	return false, fmt.Errorf("unknown comparison %s", comp)
}

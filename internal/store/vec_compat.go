// This file registers a minimal vec0-compatible virtual table and a
// vector_distance_cos scalar function with the modernc.org/sqlite driver
// ("sqlite"), which has no native vec0 support. LocalStore opens its
// database through the "sqlite3" driver, so its queries do not reach this
// shim; without the cgo sqlite-vec extension (init_vec.go, behind the
// sqlite_vec build tag) its similarity search uses the brute-force path.
package store

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	sqlite "modernc.org/sqlite"
	"modernc.org/sqlite/vtab"
)

func init() {
	_ = vtab.RegisterModule(nil, "vec0", &vecCompatModule{})
	// Deterministic: same input blobs must produce the same distance, since
	// SQLite may cache or reorder evaluation of a deterministic function.
	_ = sqlite.RegisterDeterministicScalarFunction("vector_distance_cos", 2, vecDistanceCos)
}

// vecCompatModule is an in-memory vec0 stand-in: rows live only for the
// process lifetime, since the embedding backfill on startup repopulates
// whatever the real store holds.
type vecCompatModule struct{}

var (
	vecCompatTablesMu sync.RWMutex
	vecCompatTables   = make(map[string]*vecCompatTable)
)

// vecCompatTable is one registered vec0 table, keyed by name in
// vecCompatTables so repeated CREATE VIRTUAL TABLE calls against the same
// name share storage instead of resetting it.
type vecCompatTable struct {
	name      string
	mu        sync.RWMutex
	rows      []vecCompatRow
	nextRowID int64
}

type vecCompatRow struct {
	rowid     int64
	embedding []byte
	content   string
	metadata  string
}

func (m *vecCompatModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *vecCompatModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *vecCompatModule) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("vec0: insufficient args")
	}
	// args: [module, db, table, ...]
	name := args[2]
	if err := ctx.Declare("CREATE TABLE x(embedding BLOB, content TEXT, metadata TEXT)"); err != nil {
		return nil, err
	}

	vecCompatTablesMu.Lock()
	defer vecCompatTablesMu.Unlock()
	tbl, ok := vecCompatTables[name]
	if !ok {
		tbl = &vecCompatTable{name: name, nextRowID: 1}
		vecCompatTables[name] = tbl
	}
	return tbl, nil
}

// BestIndex: no pushdowns; full scan.
func (t *vecCompatTable) BestIndex(info *vtab.IndexInfo) error {
	info.EstimatedRows = int64(len(t.rows))
	return nil
}

func (t *vecCompatTable) Open() (vtab.Cursor, error) {
	return &vecCompatCursor{tbl: t, idx: -1}, nil
}

func (t *vecCompatTable) Disconnect() error { return nil }
func (t *vecCompatTable) Destroy() error    { return nil }

// rowFromCols builds a vecCompatRow for rowid from the vec0 virtual table's
// fixed (embedding, content, metadata) column layout, shared by Insert and
// Update since both are really "place this row at this rowid".
func rowFromCols(rowid int64, cols []vtab.Value) (vecCompatRow, error) {
	emb, err := coerceBlob(cols[0])
	if err != nil {
		return vecCompatRow{}, err
	}
	return vecCompatRow{
		rowid:     rowid,
		embedding: emb,
		content:   toString(cols[1]),
		metadata:  toString(cols[2]),
	}, nil
}

func (t *vecCompatTable) Insert(cols []vtab.Value, rowid *int64) error {
	if len(cols) < 3 {
		return fmt.Errorf("vec0: insert expects 3 columns")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rid := *rowid
	if rid <= 0 {
		rid = t.nextRowID
		t.nextRowID++
	}
	row, err := rowFromCols(rid, cols)
	if err != nil {
		return err
	}

	for i := range t.rows {
		if t.rows[i].rowid == rid {
			t.rows[i] = row
			*rowid = rid
			return nil
		}
	}
	t.rows = append(t.rows, row)
	*rowid = rid
	return nil
}

func (t *vecCompatTable) Update(oldRowid int64, cols []vtab.Value, newRowid *int64) error {
	if len(cols) < 3 {
		return fmt.Errorf("vec0: update expects 3 columns")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	target := oldRowid
	if newRowid != nil && *newRowid > 0 {
		target = *newRowid
	}
	row, err := rowFromCols(target, cols)
	if err != nil {
		return err
	}

	for i := range t.rows {
		if t.rows[i].rowid == oldRowid {
			t.rows[i] = row
			return nil
		}
	}
	t.rows = append(t.rows, row)
	if target >= t.nextRowID {
		t.nextRowID = target + 1
	}
	return nil
}

func (t *vecCompatTable) Delete(oldRowid int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if t.rows[i].rowid == oldRowid {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			break
		}
	}
	return nil
}

// vecCompatCursor implements scanning.
type vecCompatCursor struct {
	tbl *vecCompatTable
	idx int
}

func (c *vecCompatCursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.idx = -1
	return c.Next()
}

func (c *vecCompatCursor) Next() error {
	c.idx++
	return nil
}

func (c *vecCompatCursor) Eof() bool {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	return c.idx >= len(c.tbl.rows)
}

func (c *vecCompatCursor) Column(col int) (vtab.Value, error) {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	if c.idx < 0 || c.idx >= len(c.tbl.rows) {
		return nil, fmt.Errorf("vec0: cursor out of range")
	}
	row := c.tbl.rows[c.idx]
	switch col {
	case 0:
		return row.embedding, nil
	case 1:
		return row.content, nil
	case 2:
		return row.metadata, nil
	default:
		return nil, fmt.Errorf("vec0: invalid column %d", col)
	}
}

func (c *vecCompatCursor) Rowid() (int64, error) {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	if c.idx < 0 || c.idx >= len(c.tbl.rows) {
		return 0, fmt.Errorf("vec0: cursor out of range")
	}
	return c.tbl.rows[c.idx].rowid, nil
}

func (c *vecCompatCursor) Close() error { return nil }

// vector_distance_cos implementation
func vecDistanceCos(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vector_distance_cos expects 2 arguments")
	}
	a, err := decodeFloat32(args[0])
	if err != nil {
		return nil, err
	}
	b, err := decodeFloat32(args[1])
	if err != nil {
		return nil, err
	}
	if len(a) == 0 || len(b) == 0 {
		return float64(1), nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vector_distance_cos: dimension mismatch %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		af := float64(a[i])
		bf := float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return float64(1), nil
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return float64(1 - cos), nil
}

// decodeFloat32 converts supported driver.Value types into a float32 slice.
func decodeFloat32(v driver.Value) ([]float32, error) {
	if v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case []byte:
		if len(x)%4 != 0 {
			return nil, fmt.Errorf("vector_distance_cos: blob length %d not multiple of 4", len(x))
		}
		out := make([]float32, len(x)/4)
		for i := 0; i < len(out); i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(x[i*4:]))
		}
		return out, nil
	case string:
		// treat as raw bytes
		return decodeFloat32([]byte(x))
	case []float32:
		return x, nil
	case []float64:
		out := make([]float32, len(x))
		for i, f := range x {
			out[i] = float32(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("vector_distance_cos: unsupported type %T", v)
	}
}

func coerceBlob(v vtab.Value) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		cp := make([]byte, len(x))
		copy(cp, x)
		return cp, nil
	case string:
		b := []byte(x)
		return b, nil
	default:
		return nil, fmt.Errorf("vec0: unsupported embedding type %T", v)
	}
}

func toString(v vtab.Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

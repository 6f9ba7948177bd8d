package orchestrate_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cruxfw/faaf/config"
	"github.com/cruxfw/faaf/orchestrate"
	"github.com/cruxfw/faaf/store"
)

type stubDispatcher struct {
	calls  []string
	result func(name string, args json.RawMessage) (json.RawMessage, error)
}

func (d *stubDispatcher) Execute(name, extension string, args json.RawMessage) (json.RawMessage, error) {
	d.calls = append(d.calls, name)
	return d.result(name, args)
}

func argFilename(t *testing.T, args json.RawMessage) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(args, &m))
	s, _ := m["filename"].(string)
	return s
}

func countRows(t *testing.T, dbPath, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func allPaths(t *testing.T, dbPath string) []string {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT path FROM result ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		require.NoError(t, rows.Scan(&p))
		out = append(out, p)
	}
	return out
}

func setupTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, contents := range files {
		full := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	}
	return root
}

func openStore(t *testing.T, dbPath string, cfg *config.Config) *store.Store {
	t.Helper()
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.CreateSchema(cfg))
	return s
}

func TestRun_EmptyConfig(t *testing.T) {
	root := setupTree(t, map[string]string{
		"a.bin": "a",
		"b.bin": "b",
		"c.bin": "c",
	})
	cfg, err := config.Load([]byte(``))
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	s := openStore(t, dbPath, cfg)

	d := &stubDispatcher{result: func(name string, args json.RawMessage) (json.RawMessage, error) {
		t.Fatalf("dispatcher should never be invoked with an empty analyzer list")
		return nil, nil
	}}

	err = orchestrate.Run(context.Background(), orchestrate.Options{
		FirmwareRoot: root,
		Config:       cfg,
		Store:        s,
		Dispatcher:   d,
	})
	require.NoError(t, err)

	require.Equal(t, 4, countRows(t, dbPath, "result"))
	require.Empty(t, d.calls)

	paths := allPaths(t, dbPath)
	require.Equal(t, "/", paths[0])
	sort.Strings(paths[1:])
	require.Equal(t, []string{"/a.bin", "/b.bin", "/c.bin"}, paths[1:])
}

func TestRun_UnconditionalAnalyzerRunsOnEveryEntry(t *testing.T) {
	root := setupTree(t, map[string]string{
		"x.bin": "x",
		"y.bin": "y",
	})
	cfg, err := config.Load([]byte(`
[[analyzer]]
name = "basic"
extension = "so"
`))
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	s := openStore(t, dbPath, cfg)

	d := &stubDispatcher{result: func(name string, args json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"mime":"x"}`), nil
	}}

	require.NoError(t, orchestrate.Run(context.Background(), orchestrate.Options{
		FirmwareRoot: root,
		Config:       cfg,
		Store:        s,
		Dispatcher:   d,
	}))

	require.Equal(t, countRows(t, dbPath, "result"), countRows(t, dbPath, "basic"))
	require.Len(t, d.calls, 3) // root + x.bin + y.bin
}

func TestRun_DependentConditionOnlyDispatchesMatchingEntries(t *testing.T) {
	root := setupTree(t, map[string]string{
		"exec_a": "",
		"exec_b": "",
		"readme": "",
	})
	cfg, err := config.Load([]byte(`
[[analyzer]]
name = "basic"
extension = "so"

[[analyzer]]
name = "ldd"
extension = "sh"
dependencies = ["basic"]
conditions = """
basic.mime == "application/x-pie-executable"
"""
`))
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	s := openStore(t, dbPath, cfg)

	d := &stubDispatcher{result: func(name string, args json.RawMessage) (json.RawMessage, error) {
		if name == "basic" {
			fn := filepath.Base(argFilename(t, args))
			if len(fn) >= len("exec_") && fn[:len("exec_")] == "exec_" {
				return json.RawMessage(`{"mime":"application/x-pie-executable"}`), nil
			}
			return json.RawMessage(`{"mime":"text/plain"}`), nil
		}
		return json.RawMessage(`{}`), nil
	}}

	require.NoError(t, orchestrate.Run(context.Background(), orchestrate.Options{
		FirmwareRoot: root,
		Config:       cfg,
		Store:        s,
		Dispatcher:   d,
	}))

	require.Equal(t, 2, countRows(t, dbPath, "ldd"))
}

func TestRun_SizeComparisonAndTypeMismatch(t *testing.T) {
	root := setupTree(t, map[string]string{
		"big.bin":   "",
		"small.bin": "",
	})
	cfg, err := config.Load([]byte(`
[[analyzer]]
name = "basic"
extension = "so"

[[analyzer]]
name = "flag"
extension = "sh"
dependencies = ["basic"]
conditions = """
basic.size > 5000
"""
`))
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	s := openStore(t, dbPath, cfg)

	d := &stubDispatcher{result: func(name string, args json.RawMessage) (json.RawMessage, error) {
		if name == "basic" {
			if filepath.Base(argFilename(t, args)) == "big.bin" {
				return json.RawMessage(`{"size":10000}`), nil
			}
			return json.RawMessage(`{"size":100}`), nil
		}
		return json.RawMessage(`{}`), nil
	}}

	require.NoError(t, orchestrate.Run(context.Background(), orchestrate.Options{
		FirmwareRoot: root,
		Config:       cfg,
		Store:        s,
		Dispatcher:   d,
	}))
	require.Equal(t, 1, countRows(t, dbPath, "flag"))

	// Now run again with basic reporting a non-numeric size: the
	// comparison must fail the whole run rather than silently skip.
	root2 := setupTree(t, map[string]string{"big.bin": ""})
	dbPath2 := filepath.Join(t.TempDir(), "db2.sqlite")
	s2 := openStore(t, dbPath2, cfg)

	d2 := &stubDispatcher{result: func(name string, args json.RawMessage) (json.RawMessage, error) {
		if name == "basic" {
			return json.RawMessage(`{"size":"big"}`), nil
		}
		return json.RawMessage(`{}`), nil
	}}

	err = orchestrate.Run(context.Background(), orchestrate.Options{
		FirmwareRoot: root2,
		Config:       cfg,
		Store:        s2,
		Dispatcher:   d2,
	})
	require.Error(t, err)
	// all-or-nothing: the aborted transaction leaves no rows anywhere,
	// even though CreateSchema already created the tables up front.
	require.Equal(t, 0, countRows(t, dbPath2, "result"))
	require.Equal(t, 0, countRows(t, dbPath2, "flag"))
}

func TestRun_MissingPredecessorRowShortCircuitsWithoutError(t *testing.T) {
	root := setupTree(t, map[string]string{"f": ""})
	cfg, err := config.Load([]byte(`
[[analyzer]]
name = "a"
extension = "so"
conditions = """
path == "/never"
"""

[[analyzer]]
name = "b"
extension = "sh"
dependencies = ["a"]
conditions = """
a.foo == 1
"""
`))
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	s := openStore(t, dbPath, cfg)

	d := &stubDispatcher{result: func(name string, args json.RawMessage) (json.RawMessage, error) {
		if name == "b" {
			t.Fatalf("b must not be dispatched when a has no row for this entry")
		}
		return json.RawMessage(`{}`), nil
	}}

	require.NoError(t, orchestrate.Run(context.Background(), orchestrate.Options{
		FirmwareRoot: root,
		Config:       cfg,
		Store:        s,
		Dispatcher:   d,
	}))

	require.Equal(t, 0, countRows(t, dbPath, "a"))
	require.Equal(t, 0, countRows(t, dbPath, "b"))
}

func TestRun_AnalyzerOrderIsConfigurationOrder(t *testing.T) {
	root := setupTree(t, map[string]string{"f": ""})
	cfg, err := config.Load([]byte(`
[[analyzer]]
name = "first"
extension = "so"

[[analyzer]]
name = "second"
extension = "so"

[[analyzer]]
name = "third"
extension = "so"
`))
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	s := openStore(t, dbPath, cfg)

	var order []string
	d := &stubDispatcher{result: func(name string, args json.RawMessage) (json.RawMessage, error) {
		order = append(order, name)
		return json.RawMessage(`{}`), nil
	}}

	require.NoError(t, orchestrate.Run(context.Background(), orchestrate.Options{
		FirmwareRoot: root,
		Config:       cfg,
		Store:        s,
		Dispatcher:   d,
	}))

	require.Equal(t, []string{"first", "second", "third", "first", "second", "third"}, order)
}

func TestWalk_PreOrderWithLeadingSlashRoot(t *testing.T) {
	root := setupTree(t, map[string]string{
		"dir/nested.bin": "",
		"top.bin":         "",
	})

	entries, err := orchestrate.Walk(root)
	require.NoError(t, err)
	require.Equal(t, "/", entries[0].RelPath)
	require.Equal(t, root, entries[0].AbsPath)

	var rels []string
	for _, e := range entries {
		rels = append(rels, e.RelPath)
	}
	require.Contains(t, rels, "/dir")
	require.Contains(t, rels, "/dir/nested.bin")
	require.Contains(t, rels, "/top.bin")

	dirIdx, nestedIdx := -1, -1
	for i, r := range rels {
		if r == "/dir" {
			dirIdx = i
		}
		if r == "/dir/nested.bin" {
			nestedIdx = i
		}
	}
	require.Less(t, dirIdx, nestedIdx)
}

package kvstore

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edumvp/backend/core"
)

type record struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

func testStore(t *testing.T, store Store) {
	t.Helper()

	var dst record
	assert.Equal(t, ErrKeyNotFound, store.Load("missing", &dst))

	want := record{Name: "alpha", Count: 3, Tags: []string{"a", "b"}}
	assert.NoError(t, store.Save("rec", want))
	assert.NoError(t, store.Load("rec", &dst))
	assert.Equal(t, want, dst)

	// overwrite wins
	want = record{Name: "beta", Count: 7}
	assert.NoError(t, store.Save("rec", want))
	dst = record{}
	assert.NoError(t, store.Load("rec", &dst))
	assert.Equal(t, want, dst)

	// keys are independent
	assert.NoError(t, store.Save("other", record{Name: "gamma"}))
	dst = record{}
	assert.NoError(t, store.Load("rec", &dst))
	assert.Equal(t, "beta", dst.Name)

	assert.NoError(t, store.Delete("rec"))
	assert.Equal(t, ErrKeyNotFound, store.Load("rec", &dst))
	assert.NoError(t, store.Delete("rec")) // deleting twice is fine
}

func TestMemStore(t *testing.T) {
	testStore(t, NewMemStore())
}

func TestMemStore_isolation(t *testing.T) {
	store := NewMemStore()

	orig := record{Name: "alpha", Tags: []string{"a"}}
	assert.NoError(t, store.Save("rec", orig))
	orig.Tags[0] = "mutated"

	var dst record
	assert.NoError(t, store.Load("rec", &dst))
	assert.Equal(t, []string{"a"}, dst.Tags, "stored value must not share memory with the caller")
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() failed: %v", err)
	}
	testStore(t, store)
}

func TestFileStore_persistence(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() failed: %v", err)
	}
	assert.NoError(t, store.Save(KeyUsers, record{Name: "alpha"}))

	// a fresh instance over the same directory sees the data
	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() failed: %v", err)
	}
	var dst record
	assert.NoError(t, reopened.Load(KeyUsers, &dst))
	assert.Equal(t, "alpha", dst.Name)

	// one <key>.json file on disk, no leftover temp files
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if assert.Len(t, entries, 1) {
		assert.Equal(t, KeyUsers+".json", entries[0].Name())
	}
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	defer store.Close()

	testStore(t, store)
}

func TestSQLiteStore_brokenConnection(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	if err = store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// a dead embedded database cannot heal; errors request a shutdown
	err = store.Save("rec", record{Name: "alpha"})
	if assert.Error(t, err) {
		assert.True(t, core.IsShutdown(err))
	}
	err = store.Load("rec", &record{})
	if assert.Error(t, err) {
		assert.True(t, core.IsShutdown(err))
	}
}

func TestNewFileStore_createsDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	if _, err := NewFileStore(dir); err != nil {
		t.Fatalf("NewFileStore() failed: %v", err)
	}
	info, err := os.Stat(dir)
	assert.NoError(t, err)
	assert.True(t, info.IsDir())
}

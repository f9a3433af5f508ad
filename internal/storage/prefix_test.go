package storage

import (
	"errors"
	"fmt"
	"testing"
)

func TestPrefixDB_Isolation(t *testing.T) {
	inner := NewMemory()
	dbA := NewPrefixDB(inner, []byte("a/"))
	dbB := NewPrefixDB(inner, []byte("b/"))

	dbA.Put([]byte("key"), []byte("fromA"))
	dbB.Put([]byte("key"), []byte("fromB"))

	for _, tc := range []struct {
		db   DB
		key  string
		want string
	}{
		{dbA, "key", "fromA"},
		{dbB, "key", "fromB"},
		{inner, "a/key", "fromA"},
		{inner, "b/key", "fromB"},
	} {
		got, err := tc.db.Get([]byte(tc.key))
		if err != nil || string(got) != tc.want {
			t.Errorf("Get(%q) = %q, %v, want %q", tc.key, got, err, tc.want)
		}
	}

	if err := dbA.Delete([]byte("key")); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := dbA.Get([]byte("key")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after Delete() error = %v", err)
	}
	if ok, _ := dbB.Has([]byte("key")); !ok {
		t.Fatal("delete leaked into the other namespace")
	}
}

func TestPrefixDB_ForEachStripsPrefix(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("net/"))
	for i := 0; i < 3; i++ {
		db.Put([]byte(fmt.Sprintf("tx/%d", i)), []byte{byte(i)})
	}
	inner.Put([]byte("tx/9"), []byte{9})

	var keys []string
	err := db.ForEach([]byte("tx/"), func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach() error: %v", err)
	}
	if fmt.Sprint(keys) != "[tx/0 tx/1 tx/2]" {
		t.Fatalf("ForEach() keys = %v", keys)
	}
}

func TestPrefixDB_DeleteAll(t *testing.T) {
	inner := NewMemory()
	dbA := NewPrefixDB(inner, []byte("a/"))
	dbB := NewPrefixDB(inner, []byte("b/"))
	for _, k := range []string{"k1", "k2", "k3"} {
		dbA.Put([]byte(k), []byte("v"))
	}
	dbB.Put([]byte("k1"), []byte("other"))

	if err := dbA.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll() error: %v", err)
	}
	for _, k := range []string{"k1", "k2", "k3"} {
		if ok, _ := dbA.Has([]byte(k)); ok {
			t.Fatalf("A still has %q after DeleteAll()", k)
		}
	}
	if got, err := dbB.Get([]byte("k1")); err != nil || string(got) != "other" {
		t.Fatalf("B.Get() after A.DeleteAll() = %q, %v", got, err)
	}
	if err := NewPrefixDB(inner, []byte("empty/")).DeleteAll(); err != nil {
		t.Fatalf("DeleteAll() on empty namespace error: %v", err)
	}
}

// noBatchDB hides the Batcher implementation of the wrapped store.
type noBatchDB struct{ DB }

func TestPrefixDB_Batch(t *testing.T) {
	for name, inner := range map[string]DB{
		"batcher":  NewMemory(),
		"fallback": noBatchDB{NewMemory()},
	} {
		t.Run(name, func(t *testing.T) {
			db := NewPrefixDB(inner, []byte("p/"))
			db.Put([]byte("old"), []byte("x"))
			b := db.NewBatch()
			b.Put([]byte("new"), []byte("y"))
			b.Delete([]byte("old"))
			if err := b.Commit(); err != nil {
				t.Fatalf("Commit() error: %v", err)
			}
			if got, err := inner.Get([]byte("p/new")); err != nil || string(got) != "y" {
				t.Fatalf("inner Get(p/new) = %q, %v", got, err)
			}
			if ok, _ := inner.Has([]byte("p/old")); ok {
				t.Fatal("batched delete not applied")
			}
		})
	}
}

func TestPrefixDB_CloseIsNoop(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("x/"))
	db.Put([]byte("key"), []byte("val"))
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if got, err := inner.Get([]byte("x/key")); err != nil || string(got) != "val" {
		t.Fatalf("inner Get() after Close() = %q, %v", got, err)
	}
}

package idgen

import (
	"sort"
	"testing"
	"time"
)

func TestULIDGenerator_SortedAndValid(t *testing.T) {
	g := NewULIDGenerator()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	ids := make([]string, 100)
	for i := range ids {
		id, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		ids[i] = id
	}
	if !sort.StringsAreSorted(ids) {
		t.Error("ids minted in the same millisecond are not sorted")
	}
	if ok, reason := g.Validate(ids[0]); !ok {
		t.Errorf("Validate(%s) = %s", ids[0], reason)
	}
	if ok, _ := g.Validate("short"); ok {
		t.Error("short id should be invalid")
	}

	ts, ok := ULIDTime(ids[0])
	if !ok || !ts.Equal(fixed) {
		t.Errorf("ULIDTime = %v, %v; want %v", ts, ok, fixed)
	}
	if _, ok := ULIDTime("not-a-ulid"); ok {
		t.Error("ULIDTime accepted garbage")
	}
}

func TestUUIDGenerator(t *testing.T) {
	g := NewUUIDGenerator()
	id, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if ok, reason := g.Validate(id); !ok {
		t.Errorf("Validate(%s) = %s", id, reason)
	}
	for _, bad := range []string{"nope", "{" + id + "}", "urn:uuid:" + id} {
		if ok, _ := g.Validate(bad); ok {
			t.Errorf("Validate(%q) accepted", bad)
		}
	}
}

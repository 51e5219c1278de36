package service

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestExtractMentions(t *testing.T) {
	cases := []struct {
		content string
		want    []string
	}{
		{"hi @bob how are you @unknownuser", []string{"bob", "unknownuser"}},
		{"@bob, @carol! and @bob again", []string{"bob", "carol"}},
		{"mail me at foo@bar.com", nil},
		{"lonely @ sign and @", nil},
		{"trailing @dave.", []string{"dave"}},
		{"", nil},
		{"no mentions here", nil},
	}
	for _, tc := range cases {
		got := ExtractMentions(tc.content)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ExtractMentions(%q) = %v, want %v", tc.content, got, tc.want)
		}
	}
}

func TestResolveFiltersToRoomMembers(t *testing.T) {
	db := testDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	seedUser(t, db, "carol")
	room := seedRoom(t, db, "general", alice.ID, bob.ID)
	svc := NewMentionService(db, nil)

	loaded, err := NewRoomService(db).Get(room.ID)
	if err != nil {
		t.Fatal(err)
	}
	users := svc.Resolve("ping @bob @carol @ghost", loaded)
	if len(users) != 1 || users[0].Username != "bob" {
		t.Fatalf("resolved = %v, want only bob", users)
	}
}

func TestResolveAllMergesExplicitIDs(t *testing.T) {
	db := testDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")
	dave := seedUser(t, db, "dave")
	room := seedRoom(t, db, "general", alice.ID, bob.ID, carol.ID)
	svc := NewMentionService(db, nil)

	loaded, err := NewRoomService(db).Get(room.ID)
	if err != nil {
		t.Fatal(err)
	}
	// @bob from the text, carol by ID; bob's ID also passed explicitly to
	// exercise de-duplication, dave is not a member and must be dropped.
	users := svc.ResolveAll("hey @bob", []uint{carol.ID, bob.ID, dave.ID, 999}, loaded)
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	if !reflect.DeepEqual(names, []string{"bob", "carol"}) {
		t.Fatalf("resolved = %v, want [bob carol]", names)
	}
}

func TestSuggestRanking(t *testing.T) {
	db := testDB(t)
	seedUser(t, db, "annabel")
	seedUser(t, db, "joanna")
	seedUser(t, db, "anton")
	seedUser(t, db, "bob")
	svc := NewMentionService(db, nil)

	out, err := svc.Suggest(context.Background(), "@an")
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(out))
	for _, u := range out {
		names = append(names, u.Username)
	}
	// Prefix matches first, then substring matches, alphabetical within each.
	if !reflect.DeepEqual(names, []string{"annabel", "anton", "joanna"}) {
		t.Fatalf("suggestions = %v", names)
	}
}

func TestSuggestEmptyQuery(t *testing.T) {
	svc := NewMentionService(testDB(t), nil)
	out, err := svc.Suggest(context.Background(), "  @ ")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("suggestions = %v, want none", out)
	}
}

// mapCache is an in-process Cache for asserting the read-through path.
type mapCache struct {
	mu   sync.Mutex
	data map[string]string
	sets int
	hits int
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string]string)} }

func (c *mapCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", errMiss{}
	}
	c.hits++
	return v, nil
}

func (c *mapCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *mapCache) Del(ctx context.Context, keys ...string) error { return nil }

func (c *mapCache) Close() error { return nil }

type errMiss struct{}

func (errMiss) Error() string { return "miss" }

func TestSuggestUsesCache(t *testing.T) {
	db := testDB(t)
	seedUser(t, db, "annabel")
	c := newMapCache()
	svc := NewMentionService(db, c)

	first, err := svc.Suggest(context.Background(), "an")
	if err != nil {
		t.Fatal(err)
	}
	if c.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", c.sets)
	}

	// A second identical query must be served from the cache.
	second, err := svc.Suggest(context.Background(), "An")
	if err != nil {
		t.Fatal(err)
	}
	if c.hits != 1 {
		t.Fatalf("cache hits = %d, want 1", c.hits)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cached result diverged: %v vs %v", first, second)
	}
}

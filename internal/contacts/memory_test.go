package contacts

import (
	"context"
	"errors"
	"testing"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
)

func newTestStore() *Store {
	return NewStore(logger.New(logger.LevelOff, nil))
}

func TestStoreAddAssignsID(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	c, err := s.Add(ctx, domain.TrustedContact{Name: "Asha", Phone: "555-0101"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if c.ID == "" {
		t.Fatal("no ID assigned")
	}

	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Asha" {
		t.Fatalf("got %+v", got)
	}
}

func TestStorePrimaryDemotion(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	first, _ := s.Add(ctx, domain.TrustedContact{Name: "Asha", Primary: true})
	second, _ := s.Add(ctx, domain.TrustedContact{Name: "Ben", Primary: true})

	got, _ := s.Get(ctx, first.ID)
	if got.Primary {
		t.Fatal("old primary not demoted")
	}
	p, err := s.Primary(ctx)
	if err != nil {
		t.Fatalf("primary: %v", err)
	}
	if p.ID != second.ID {
		t.Fatalf("primary = %s, want %s", p.Name, second.Name)
	}
}

func TestStoreListOrder(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, domain.TrustedContact{Name: "Zoe"})
	s.Add(ctx, domain.TrustedContact{Name: "Ben", Primary: true})
	s.Add(ctx, domain.TrustedContact{Name: "Asha"})

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Ben", "Asha", "Zoe"}
	if len(all) != len(want) {
		t.Fatalf("got %d contacts, want %d", len(all), len(want))
	}
	for i, name := range want {
		if all[i].Name != name {
			t.Fatalf("order %v, want primary first then by name", all)
		}
	}
}

func TestStoreRemove(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	c, _ := s.Add(ctx, domain.TrustedContact{Name: "Asha"})
	if err := s.Remove(ctx, c.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Get(ctx, c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after remove: %v, want not-found", err)
	}
	if err := s.Remove(ctx, c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second remove: %v, want not-found", err)
	}
}

func TestStorePrimaryFallback(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	if _, err := s.Primary(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty store primary: %v, want not-found", err)
	}

	// Nobody marked primary: first by name wins.
	s.Add(ctx, domain.TrustedContact{Name: "Zoe"})
	s.Add(ctx, domain.TrustedContact{Name: "Asha"})
	p, err := s.Primary(ctx)
	if err != nil {
		t.Fatalf("primary: %v", err)
	}
	if p.Name != "Asha" {
		t.Fatalf("primary = %s, want Asha", p.Name)
	}
}

func TestStoreSearch(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, domain.TrustedContact{Name: "Asha Patel"})
	s.Add(ctx, domain.TrustedContact{Name: "Ben Asher"})
	s.Add(ctx, domain.TrustedContact{Name: "Zoe"})

	got, err := s.Search(ctx, "ash")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("search hit %d contacts, want 2 (%v)", len(got), got)
	}
}

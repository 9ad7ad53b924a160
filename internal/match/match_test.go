package match

import (
	"testing"
	"time"

	"github.com/MarcineQ18/apilo-notifier1/internal/db"
)

func tpl(id int64, priority int, updatedAt time.Time, active bool, skus ...string) db.Template {
	return db.Template{
		ID:        id,
		Priority:  priority,
		UpdatedAt: updatedAt,
		IsActive:  active,
		SKUs:      skus,
	}
}

func ids(tpls []db.Template) []int64 {
	out := make([]int64, 0, len(tpls))
	for _, t := range tpls {
		out = append(out, t.ID)
	}
	return out
}

func TestEmptySKUSetMatchesEveryOrder(t *testing.T) {
	catalog := []db.Template{tpl(1, 100, time.Now(), true)}

	if got := Match(catalog, []string{"A"}); len(got) != 1 {
		t.Fatalf("expected wildcard match for order with SKUs, got %d", len(got))
	}
	if got := Match(catalog, nil); len(got) != 1 {
		t.Fatalf("expected wildcard match for order without SKUs, got %d", len(got))
	}
}

func TestSKUIntersection(t *testing.T) {
	now := time.Now()
	catalog := []db.Template{tpl(1, 100, now, true, "A", "B")}

	if got := Match(catalog, []string{"B", "C"}); len(got) != 1 {
		t.Fatalf("expected {A,B} to match order {B,C}, got %d", len(got))
	}
	if got := Match(catalog, []string{"C", "D"}); len(got) != 0 {
		t.Fatalf("expected {A,B} not to match order {C,D}, got %d", len(got))
	}
}

func TestInactiveTemplatesNeverMatch(t *testing.T) {
	catalog := []db.Template{
		tpl(1, 100, time.Now(), false),
		tpl(2, 100, time.Now(), false, "A"),
	}
	if got := Match(catalog, []string{"A"}); len(got) != 0 {
		t.Fatalf("inactive templates matched: %v", ids(got))
	}
}

func TestDeterministicOrdering(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	catalog := []db.Template{
		tpl(1, 200, t1, true),
		tpl(2, 100, t3, true),
		tpl(3, 100, t2, true),
	}

	got := ids(Match(catalog, nil))
	want := []int64{3, 2, 1} // priority 100 ordered by older UpdatedAt first, then priority 200
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v, want %v", got, want)
		}
	}
}

func TestCatalogNotMutated(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	catalog := []db.Template{
		tpl(1, 200, t1, true),
		tpl(2, 100, t2, true),
	}

	Match(catalog, nil)

	if catalog[0].ID != 1 || catalog[1].ID != 2 {
		t.Fatal("Match reordered the caller's catalog slice")
	}
}

package selection

import (
	"errors"
	"testing"

	"github.com/nvandessel/competence/internal/competence"
	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/models"
)

// chain builds C1 -> C2 -> C3 -> C4. Its initial vector masters only C1.
func chain(t *testing.T) *competence.Graph {
	t.Helper()
	g, err := competence.NewGraph(
		[]models.CompetenceDef{{ID: "C1"}, {ID: "C2"}, {ID: "C3"}, {ID: "C4"}},
		[]models.PrerequisiteEdge{
			{CompetenceID: "C2", Requires: []string{"C1"}},
			{CompetenceID: "C3", Requires: []string{"C2"}},
			{CompetenceID: "C4", Requires: []string{"C3"}},
		})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return g
}

func content(t *testing.T, g *competence.Graph, units ...models.UnitDef) *ContentGraph {
	t.Helper()
	cg, err := NewContentGraph(units, g)
	if err != nil {
		t.Fatalf("NewContentGraph: %v", err)
	}
	return cg
}

func TestNewContentGraph_Errors(t *testing.T) {
	g := chain(t)
	tests := []struct {
		name  string
		units []models.UnitDef
	}{
		{"empty id", []models.UnitDef{{ID: ""}}},
		{"duplicate", []models.UnitDef{{ID: "U1"}, {ID: "U1"}}},
		{"unknown competence", []models.UnitDef{{ID: "U1", Requires: []string{"C9"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewContentGraph(tt.units, g); !errors.Is(err, models.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestNewContentGraph_DedupesRequirements(t *testing.T) {
	cg := content(t, chain(t), models.UnitDef{ID: "U1", Requires: []string{"C1", "C2", "C1"}})
	u, ok := cg.Unit("U1")
	if !ok {
		t.Fatal("U1 missing")
	}
	if len(u.Requires) != 2 {
		t.Errorf("Requires = %v, want [C1 C2]", u.Requires)
	}
	if len(cg.Successors("U1")) != 1 {
		t.Errorf("a unit is its own successor")
	}
}

func TestContentGraph_SuccessorsIsComplete(t *testing.T) {
	cg := content(t, chain(t),
		models.UnitDef{ID: "U1", Requires: []string{"C1"}},
		models.UnitDef{ID: "U2", Requires: []string{"C2"}},
		models.UnitDef{ID: "U3", Requires: []string{"C1", "C2"}},
	)
	for _, current := range []string{"", "U1", "U2", "U3", "unknown"} {
		t.Run("after "+current, func(t *testing.T) {
			got := cg.Successors(current)
			if len(got) != 3 {
				t.Fatalf("Successors(%q) has %d units, want 3", current, len(got))
			}
			for i, id := range []string{"U1", "U2", "U3"} {
				if got[i].ID != id {
					t.Errorf("Successors(%q)[%d] = %s, want %s", current, i, got[i].ID, id)
				}
			}
		})
	}
}

func TestNext_MinimumGap(t *testing.T) {
	g := chain(t)
	v := mastery.Initial(g)
	cg := content(t, g,
		models.UnitDef{ID: "U2", Requires: []string{"C2"}},
		models.UnitDef{ID: "U1", Requires: []string{"C1"}},
		models.UnitDef{ID: "U3", Requires: []string{"C3"}},
	)
	h := NewHistory()
	sel := NewSelector(nil)

	id, ok := sel.Next(h.Current, v, cg, h)
	if !ok || id != "U1" {
		t.Fatalf("Next = %q, %v; want U1", id, ok)
	}
	if h.Current != "U1" || h.Count("U1") != 1 {
		t.Errorf("history not updated: %+v", h)
	}

	// Gap still wins over play count.
	id, _ = sel.Next(h.Current, v, cg, h)
	if id != "U1" || h.Count("U1") != 2 {
		t.Errorf("second Next = %q (plays %d), want U1 twice", id, h.Count("U1"))
	}
}

func TestNext_TieBreaks(t *testing.T) {
	g := chain(t)
	v := mastery.Initial(g)
	cg := content(t, g,
		models.UnitDef{ID: "A", Requires: []string{"C1"}},
		models.UnitDef{ID: "B", Requires: []string{"C1"}},
	)
	h := NewHistory()
	sel := NewSelector(nil)

	var got []string
	for i := 0; i < 4; i++ {
		id, ok := sel.Next(h.Current, v, cg, h)
		if !ok {
			t.Fatal("unexpected exhaustion")
		}
		got = append(got, id)
	}
	want := []string{"A", "B", "A", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sequence = %v, want %v", got, want)
		}
	}
}

func TestNext_Gating(t *testing.T) {
	g := chain(t)
	v := mastery.Initial(g) // only C1 mastered
	cg := content(t, g,
		models.UnitDef{ID: "hard", Requires: []string{"C3"}},
		models.UnitDef{ID: "mixed", Requires: []string{"C1", "C4"}},
		models.UnitDef{ID: "next", Requires: []string{"C2", "C1"}},
	)
	sel := NewSelector(nil)

	for _, c := range sel.Evaluate("", v, cg, NewHistory()) {
		switch c.Unit.ID {
		case "hard":
			if c.Gated != "C3" {
				t.Errorf("hard gated by %q, want C3", c.Gated)
			}
		case "mixed":
			if c.Gated != "C4" || c.Gap != 1 {
				t.Errorf("mixed = %+v, want gated by C4 with gap 1", c)
			}
		case "next":
			if c.Gated != "" || c.Gap != 1 {
				t.Errorf("next = %+v, want ungated with gap 1", c)
			}
		}
	}

	h := NewHistory()
	for i := 0; i < 3; i++ {
		id, ok := sel.Next(h.Current, v, cg, h)
		if !ok || id != "next" {
			t.Fatalf("Next = %q, %v; want next", id, ok)
		}
	}
}

func TestNext_Exhausted(t *testing.T) {
	g := chain(t)
	v := mastery.Initial(g)
	cg := content(t, g, models.UnitDef{ID: "hard", Requires: []string{"C3"}})
	h := RestoreHistory(map[string]int{"hard": 2}, "hard")

	id, ok := NewSelector(nil).Next(h.Current, v, cg, h)
	if ok || id != "" {
		t.Errorf("Next = %q, %v; want exhaustion", id, ok)
	}
	if h.Count("hard") != 2 || h.Current != "hard" {
		t.Errorf("history changed on exhaustion: %+v", h)
	}
}

func TestNext_EmptyCatalogue(t *testing.T) {
	g := chain(t)
	if _, ok := NewSelector(nil).Next("", mastery.Initial(g), content(t, g), NewHistory()); ok {
		t.Error("expected exhaustion with no units")
	}
}

func TestHistory(t *testing.T) {
	h := RestoreHistory(map[string]int{"U1": 3}, "U1")
	h.Record("U2")
	snap := h.Snapshot()
	h.Record("U2")
	if snap["U2"] != 1 {
		t.Errorf("snapshot aliased history: %v", snap)
	}
	if h.Current != "U2" || h.Count("U2") != 2 || h.Count("U1") != 3 {
		t.Errorf("unexpected history %+v", h)
	}
	h.Reset()
	if h.Current != "" || len(h.PlayCounts) != 0 {
		t.Errorf("Reset left %+v", h)
	}

	var zero History
	zero.Record("U1")
	if zero.Count("U1") != 1 {
		t.Error("zero history should accept records")
	}
}

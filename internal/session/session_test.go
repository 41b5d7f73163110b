package session

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/nvandessel/competence/internal/domain"
	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/models"
	"github.com/nvandessel/competence/internal/store"
)

func sampleDomain(t *testing.T) *domain.Compiled {
	t.Helper()
	c, err := domain.Compile(domain.Sample())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return c
}

func openSession(t *testing.T, st store.StateStore, mutate ...func(*Options)) *Session {
	t.Helper()
	opts := Options{Domain: sampleDomain(t), LearnerID: "ana", Store: st}
	for _, m := range mutate {
		m(&opts)
	}
	s, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpen_Fresh(t *testing.T) {
	st := store.NewMemoryStateStore()
	s := openSession(t, st)

	if !s.Fresh() {
		t.Error("expected a fresh session")
	}
	if want := models.StateKey(s.Domain().Graph.DomainID(), "ana"); s.Key() != want {
		t.Errorf("Key() = %q, want %q", s.Key(), want)
	}
	if s.Threshold() != 0.7 {
		t.Errorf("Threshold() = %v, want 0.7", s.Threshold())
	}

	m := s.CurrentMastery()
	if got, want := m["C1"], 14.0/22; math.Abs(got-want) > 1e-12 {
		t.Errorf("C1 = %v, want %v", got, want)
	}
	if got, want := m["C10"], 2.0/22; math.Abs(got-want) > 1e-12 {
		t.Errorf("C10 = %v, want %v", got, want)
	}

	keys, _ := st.Keys(context.Background())
	if len(keys) != 0 {
		t.Errorf("Open should not persist, store has %v", keys)
	}
}

func TestOpen_Errors(t *testing.T) {
	dom := sampleDomain(t)
	tests := []struct {
		name string
		opts Options
	}{
		{"no domain", Options{LearnerID: "ana"}},
		{"no learner", Options{Domain: dom}},
		{"threshold too high", Options{Domain: dom, LearnerID: "ana", Threshold: 1.5}},
		{"negative threshold", Options{Domain: dom, LearnerID: "ana", Threshold: -0.2}},
		{"bad unit strength", Options{Domain: dom, LearnerID: "ana", UnitStrength: "huge"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(context.Background(), tt.opts); !errors.Is(err, models.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestNextUnit_PersistsHistory(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStateStore()
	s := openSession(t, st)

	want := []string{"counting-game", "digit-match", "counting-game"}
	for i, w := range want[:2] {
		id, ok, err := s.NextUnit(ctx)
		if err != nil || !ok {
			t.Fatalf("NextUnit #%d = %q, %v, %v", i, id, ok, err)
		}
		if id != w {
			t.Errorf("NextUnit #%d = %q, want %q", i, id, w)
		}
	}
	if s.Fresh() {
		t.Error("session should no longer be fresh after a selection")
	}

	state, err := st.Load(ctx, s.Key())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.CurrentUnit != "digit-match" || state.PlayCounts["counting-game"] != 1 {
		t.Errorf("persisted history = %v current=%q", state.PlayCounts, state.CurrentUnit)
	}

	// A new session for the same learner continues where the last one stopped.
	again := openSession(t, st)
	if again.Fresh() {
		t.Error("reopened session should not be fresh")
	}
	id, _, _ := again.NextUnit(ctx)
	if id != want[2] {
		t.Errorf("NextUnit after reopen = %q, want %q", id, want[2])
	}
}

func TestApplyEvidenceForUnit(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStateStore()
	s := openSession(t, st)

	res, err := s.ApplyEvidenceForUnit(ctx, "counting-game", true)
	if err != nil {
		t.Fatalf("ApplyEvidenceForUnit: %v", err)
	}
	if res.Applied() != 1 {
		t.Fatalf("applied = %d, want 1", res.Applied())
	}

	v := s.Vector()
	if !v.Mastered("C1") {
		p, _ := v.Get("C1")
		t.Errorf("C1 = %v, expected mastered after a medium success", p)
	}
	if ok, p, c := v.Consistent(0); !ok {
		t.Errorf("vector inconsistent: %s <= %s", p, c)
	}

	state, err := st.Load(ctx, s.Key())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for id, p := range s.CurrentMastery() {
		if state.Mastery[id] != p {
			t.Errorf("persisted %s = %v, want %v", id, state.Mastery[id], p)
		}
	}

	before := s.CurrentMastery()["C1"]
	if _, err := s.ApplyEvidenceForUnit(ctx, "bigger-pile", false); err != nil {
		t.Fatalf("failure result: %v", err)
	}
	if after := s.CurrentMastery()["C1"]; after >= before {
		t.Errorf("C1 after failure = %v, want below %v", after, before)
	}
}

func TestApplyEvidenceForUnit_UnknownUnit(t *testing.T) {
	s := openSession(t, store.NewMemoryStateStore())
	before := s.CurrentMastery()

	_, err := s.ApplyEvidenceForUnit(context.Background(), "no-such-game", true)
	if !errors.Is(err, models.ErrUnknownIdentifier) {
		t.Fatalf("expected unknown identifier, got %v", err)
	}
	if !s.Fresh() {
		t.Error("failed call should not persist")
	}
	if got := s.CurrentMastery(); got["C1"] != before["C1"] {
		t.Error("failed call changed the vector")
	}
}

func TestUnitEvidence(t *testing.T) {
	s := openSession(t, nil, func(o *Options) { o.UnitStrength = models.StrengthHigh })

	items, err := s.UnitEvidence("column-sums", false)
	if err != nil {
		t.Fatalf("UnitEvidence: %v", err)
	}
	want := []models.Evidence{
		{CompetenceID: "C6", Direction: models.DirectionDown, Strength: models.StrengthHigh},
		{CompetenceID: "C8", Direction: models.DirectionDown, Strength: models.StrengthHigh},
	}
	if len(items) != len(want) {
		t.Fatalf("items = %v", items)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d = %v, want %v", i, items[i], want[i])
		}
	}
}

func TestApplyEvidence_AllRejected(t *testing.T) {
	s := openSession(t, store.NewMemoryStateStore())

	res, err := s.ApplyEvidence(context.Background(), []models.Evidence{
		{CompetenceID: "C42", Direction: models.DirectionUp, Strength: models.StrengthLow},
	})
	if err != nil {
		t.Fatalf("ApplyEvidence: %v", err)
	}
	if res.Applied() != 0 || len(res.Rejected) != 1 {
		t.Errorf("applied=%d rejected=%d", res.Applied(), len(res.Rejected))
	}
	if !s.Fresh() {
		t.Error("nothing applied, nothing should be saved")
	}
}

func TestResetToInitial_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStateStore()
	s := openSession(t, st)
	initial := mastery.Initial(s.Domain().Graph)

	s.ApplyEvidence(ctx, []models.Evidence{
		{CompetenceID: "C3", Direction: models.DirectionUp, Strength: models.StrengthHigh},
		{CompetenceID: "C9", Direction: models.DirectionDown, Strength: models.StrengthLow},
	})
	s.NextUnit(ctx)

	if err := s.ResetToInitial(ctx); err != nil {
		t.Fatalf("ResetToInitial: %v", err)
	}
	first := s.State()
	if err := s.ResetToInitial(ctx); err != nil {
		t.Fatalf("second ResetToInitial: %v", err)
	}
	second := s.State()

	if !s.Vector().Equal(initial) {
		t.Error("vector differs from the initial vector after reset")
	}
	for id, p := range first.Mastery {
		if second.Mastery[id] != p {
			t.Errorf("%s: %v then %v", id, p, second.Mastery[id])
		}
	}
	if len(second.PlayCounts) != 0 || second.CurrentUnit != "" {
		t.Errorf("history not cleared: %v %q", second.PlayCounts, second.CurrentUnit)
	}

	persisted, err := st.Load(ctx, s.Key())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(persisted.PlayCounts) != 0 {
		t.Errorf("persisted play counts = %v", persisted.PlayCounts)
	}
}

func TestOpen_RestoresAndFilters(t *testing.T) {
	ctx := context.Background()
	dom := sampleDomain(t)
	key := models.StateKey(dom.Graph.DomainID(), "ana")
	st := store.NewMemoryStateStore()

	st.Save(ctx, key, &models.LearnerState{
		DomainID:    dom.Graph.DomainID(),
		LearnerID:   "ana",
		Mastery:     map[string]float64{"C1": 0.9, "C2": 0.8},
		PlayCounts:  map[string]int{"counting-game": 3, "retired-game": 2},
		CurrentUnit: "retired-game",
	})

	s := openSession(t, st)
	m := s.CurrentMastery()
	if m["C1"] != 0.9 || m["C2"] != 0.8 {
		t.Errorf("restored mastery = %v", m)
	}
	if got, want := m["C3"], 15.0/22; math.Abs(got-want) > 1e-12 {
		t.Errorf("missing competence C3 = %v, want initial %v", got, want)
	}
	counts, current := s.History()
	if counts["counting-game"] != 3 || len(counts) != 1 || current != "" {
		t.Errorf("history = %v current=%q", counts, current)
	}
}

func TestOpen_UnknownPersistedCompetence(t *testing.T) {
	ctx := context.Background()
	dom := sampleDomain(t)
	key := models.StateKey(dom.Graph.DomainID(), "ana")
	st := store.NewMemoryStateStore()
	st.Save(ctx, key, &models.LearnerState{
		DomainID:  dom.Graph.DomainID(),
		LearnerID: "ana",
		Mastery:   map[string]float64{"C99": 0.5},
	})

	if _, err := Open(ctx, Options{Domain: dom, LearnerID: "ana", Store: st}); !errors.Is(err, models.ErrUnknownIdentifier) {
		t.Errorf("expected unknown identifier, got %v", err)
	}
}

func TestThreshold_AffectsMastered(t *testing.T) {
	s := openSession(t, nil, func(o *Options) { o.Threshold = 0.6 })
	v := s.Vector()
	if !v.Mastered("C1") {
		t.Error("C1 (14/22) should be mastered at threshold 0.6")
	}
	if v.Mastered("C5") {
		t.Error("C5 (0.5) should not be mastered at threshold 0.6")
	}
}

func TestCandidates(t *testing.T) {
	s := openSession(t, nil)
	cands := s.Candidates()
	if len(cands) != s.Domain().Content.Len() {
		t.Fatalf("candidates = %d, want %d", len(cands), s.Domain().Content.Len())
	}
	gated := map[string]bool{}
	for _, c := range cands {
		if c.Gated != "" {
			gated[c.Unit.ID] = true
		}
	}
	if gated["counting-game"] || !gated["borrow-quest"] {
		t.Errorf("gated = %v", gated)
	}
}

func TestConcurrentUse(t *testing.T) {
	ctx := context.Background()
	s := openSession(t, store.NewMemoryStateStore())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.ApplyEvidenceForUnit(ctx, "digit-match", i%4 == 0)
			} else {
				s.NextUnit(ctx)
			}
			_ = s.CurrentMastery()
		}(i)
	}
	wg.Wait()

	if ok, p, c := s.Vector().Consistent(0); !ok {
		t.Errorf("vector inconsistent after concurrent use: %s <= %s", p, c)
	}
}

var errStoreDown = errors.New("store down")

// flakyStore fails every Save while down is set.
type flakyStore struct {
	store.StateStore
	down bool
}

func (f *flakyStore) Save(ctx context.Context, key string, state *models.LearnerState) error {
	if f.down {
		return errStoreDown
	}
	return f.StateStore.Save(ctx, key, state)
}

func TestFailedSave_LeavesSessionUnchanged(t *testing.T) {
	ctx := context.Background()
	st := &flakyStore{StateStore: store.NewMemoryStateStore()}
	s := openSession(t, st)

	if _, _, err := s.NextUnit(ctx); err != nil {
		t.Fatalf("NextUnit: %v", err)
	}
	wantVec := s.Vector()
	wantCounts, wantCurrent := s.History()

	st.down = true
	if _, err := s.ApplyEvidenceForUnit(ctx, "counting-game", true); !errors.Is(err, errStoreDown) {
		t.Errorf("ApplyEvidenceForUnit error = %v, want store failure", err)
	}
	if _, ok, err := s.NextUnit(ctx); !errors.Is(err, errStoreDown) || ok {
		t.Errorf("NextUnit = %v, %v, want store failure", ok, err)
	}
	if err := s.ResetToInitial(ctx); !errors.Is(err, errStoreDown) {
		t.Errorf("ResetToInitial error = %v, want store failure", err)
	}

	if !s.Vector().Equal(wantVec) {
		t.Errorf("vector changed after failed saves: %v, want %v", s.CurrentMastery(), wantVec.Map())
	}
	counts, current := s.History()
	if !reflect.DeepEqual(counts, wantCounts) || current != wantCurrent {
		t.Errorf("history = %v %q, want %v %q", counts, current, wantCounts, wantCurrent)
	}

	st.down = false
	persisted, err := st.Load(ctx, s.Key())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(persisted.Mastery, wantVec.Map()) || !reflect.DeepEqual(persisted.PlayCounts, wantCounts) {
		t.Error("store and session diverged")
	}
}

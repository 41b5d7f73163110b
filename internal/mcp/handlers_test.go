package mcp

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestHandleEvidence(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	ctx := context.Background()

	_, out, err := srv.handleEvidence(ctx, nil, EvidenceInput{Items: []EvidenceItem{
		{CompetenceID: "C1", Direction: "up", Strength: "medium"},
		{CompetenceID: "C99", Direction: "up"},
		{CompetenceID: "C2", Direction: "sideways"},
	}})
	if err != nil {
		t.Fatalf("handleEvidence: %v", err)
	}

	if out.Applied != 1 {
		t.Errorf("Applied = %d, want 1", out.Applied)
	}
	if len(out.Rejected) != 2 {
		t.Fatalf("Rejected = %v, want 2 items", out.Rejected)
	}
	if !strings.Contains(out.Rejected[0].Reason, "direction") {
		t.Errorf("parse rejection should come first, got %+v", out.Rejected[0])
	}
	if !strings.HasPrefix(out.Rejected[1].Evidence, "C99:") {
		t.Errorf("unknown competence rejection = %+v", out.Rejected[1])
	}
	if len(out.Crossed) != 1 || out.Crossed[0] != "C1" {
		t.Errorf("Crossed = %v, want [C1]", out.Crossed)
	}
	if len(out.Mastery) != 10 || out.Mastery[0].ID != "C1" || !out.Mastery[0].Mastered {
		t.Errorf("Mastery head = %+v", out.Mastery[0])
	}
	if math.Abs(out.Mastery[0].Probability-7.0/9) > 1e-3 {
		t.Errorf("C1 = %v, want about 0.778", out.Mastery[0].Probability)
	}
}

func TestHandleEvidence_Errors(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	ctx := context.Background()

	if _, _, err := srv.handleEvidence(ctx, nil, EvidenceInput{}); err == nil {
		t.Error("expected error for empty items")
	}

	_, out, err := srv.handleEvidence(ctx, nil, EvidenceInput{Items: []EvidenceItem{
		{CompetenceID: "", Direction: "up"},
		{CompetenceID: "C1", Direction: "up", Strength: "extreme"},
	}})
	if err != nil {
		t.Fatalf("all-rejected batch should not fail: %v", err)
	}
	if out.Applied != 0 || len(out.Rejected) != 2 || len(out.Crossed) != 0 {
		t.Errorf("out = %+v", out)
	}
}

func TestHandleUnitResult(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	ctx := context.Background()

	_, out, err := srv.handleUnitResult(ctx, nil, UnitResultInput{UnitID: "counting-game", Success: true})
	if err != nil {
		t.Fatalf("handleUnitResult: %v", err)
	}
	if out.Applied != 1 || len(out.Crossed) != 1 || out.Crossed[0] != "C1" {
		t.Errorf("out = %+v", out)
	}

	if _, _, err := srv.handleUnitResult(ctx, nil, UnitResultInput{UnitID: "no-such-unit"}); err == nil {
		t.Error("expected error for unknown unit")
	}
	if _, _, err := srv.handleUnitResult(ctx, nil, UnitResultInput{}); err == nil {
		t.Error("expected error for missing unit id")
	}
	if _, _, err := srv.handleUnitResult(ctx, nil, UnitResultInput{UnitID: " \x00\t"}); err == nil {
		t.Error("expected error for unit id that is only control characters")
	}
}

func TestHandleEvidence_SanitizesIDs(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	ctx := context.Background()

	_, out, err := srv.handleEvidence(ctx, nil, EvidenceInput{Items: []EvidenceItem{
		{CompetenceID: " C1\x00\n", Direction: "up"},
	}})
	if err != nil {
		t.Fatalf("handleEvidence: %v", err)
	}
	if out.Applied != 1 || len(out.Crossed) != 1 || out.Crossed[0] != "C1" {
		t.Errorf("out = %+v", out)
	}
}

func TestHandleMastery(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	ctx := context.Background()

	_, out, err := srv.handleMastery(ctx, nil, MasteryInput{})
	if err != nil {
		t.Fatalf("handleMastery: %v", err)
	}
	if out.Learner != "ada" || out.Total != 10 || out.MasteredCount != 0 || len(out.Competences) != 10 {
		t.Errorf("out = %+v", out)
	}
	if out.Threshold != 0.7 {
		t.Errorf("Threshold = %v, want 0.7", out.Threshold)
	}

	if _, _, err := srv.handleUnitResult(ctx, nil, UnitResultInput{UnitID: "counting-game", Success: true}); err != nil {
		t.Fatalf("handleUnitResult: %v", err)
	}
	_, out, err = srv.handleMastery(ctx, nil, MasteryInput{MasteredOnly: true})
	if err != nil {
		t.Fatalf("handleMastery: %v", err)
	}
	if out.MasteredCount != 1 || len(out.Competences) != 1 || out.Competences[0].ID != "C1" {
		t.Errorf("mastered only = %+v", out)
	}
}

func TestHandleNext(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	ctx := context.Background()

	_, out, err := srv.handleNext(ctx, nil, NextInput{Explain: true})
	if err != nil {
		t.Fatalf("handleNext: %v", err)
	}
	if out.Exhausted || out.Unit == nil {
		t.Fatalf("out = %+v", out)
	}
	if out.Unit.ID != "counting-game" || out.Plays != 1 {
		t.Errorf("unit = %s plays = %d, want counting-game 1", out.Unit.ID, out.Plays)
	}
	if len(out.Candidates) == 0 {
		t.Error("explain should list candidates")
	}

	_, out, err = srv.handleNext(ctx, nil, NextInput{})
	if err != nil {
		t.Fatalf("handleNext: %v", err)
	}
	if out.Unit == nil || out.Unit.ID != "digit-match" || out.Candidates != nil {
		t.Errorf("second selection = %+v", out)
	}
}

func TestHandleReset(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	ctx := context.Background()

	before := srv.session.CurrentMastery()
	if _, _, err := srv.handleUnitResult(ctx, nil, UnitResultInput{UnitID: "bigger-pile", Success: true}); err != nil {
		t.Fatalf("handleUnitResult: %v", err)
	}

	if _, _, err := srv.handleReset(ctx, nil, ResetInput{}); err == nil {
		t.Error("reset without confirm should fail")
	}
	_, out, err := srv.handleReset(ctx, nil, ResetInput{Confirm: true})
	if err != nil {
		t.Fatalf("handleReset: %v", err)
	}
	if !strings.Contains(out.Message, "ada") {
		t.Errorf("Message = %q", out.Message)
	}
	after := srv.session.CurrentMastery()
	for id, p := range before {
		if after[id] != p {
			t.Errorf("%s = %v after reset, want %v", id, after[id], p)
		}
	}
}

func TestHandleGraph(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	ctx := context.Background()

	_, out, err := srv.handleGraph(ctx, nil, GraphInput{})
	if err != nil {
		t.Fatalf("handleGraph: %v", err)
	}
	if out.Format != "json" || out.NodeCount != 10 || out.EdgeCount != 9 {
		t.Errorf("out = %+v", out)
	}
	raw, ok := out.Graph.(json.RawMessage)
	if !ok {
		t.Fatalf("json graph type = %T", out.Graph)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("graph is not JSON: %v", err)
	}
	if decoded["domain"] != "arithmetic" {
		t.Errorf("domain = %v", decoded["domain"])
	}

	_, out, err = srv.handleGraph(ctx, nil, GraphInput{Format: "dot"})
	if err != nil {
		t.Fatalf("dot: %v", err)
	}
	if dot, _ := out.Graph.(string); !strings.HasPrefix(dot, "digraph") {
		t.Errorf("dot output = %.40q", out.Graph)
	}

	_, out, err = srv.handleGraph(ctx, nil, GraphInput{Format: "html"})
	if err != nil {
		t.Fatalf("html: %v", err)
	}
	if html, _ := out.Graph.(string); !strings.Contains(html, "<html") {
		t.Error("html output missing <html")
	}

	if _, _, err := srv.handleGraph(ctx, nil, GraphInput{Format: "svg"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestHandleMasteryResource(t *testing.T) {
	srv, _ := setupTestServer(t, false)
	ctx := context.Background()

	if _, _, err := srv.handleUnitResult(ctx, nil, UnitResultInput{UnitID: "counting-game", Success: true}); err != nil {
		t.Fatalf("handleUnitResult: %v", err)
	}

	res, err := srv.handleMasteryResource(ctx, nil)
	if err != nil {
		t.Fatalf("handleMasteryResource: %v", err)
	}
	if len(res.Contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(res.Contents))
	}
	text := res.Contents[0].Text
	for _, want := range []string{
		"mastered 1 of 10",
		"## Mastered\n\n- C1 (Count to twenty): 78%",
		"## Ready to learn",
		"## Locked",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("resource missing %q:\n%s", want, text)
		}
	}
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/models"
	"github.com/nvandessel/competence/internal/sanitize"
	"github.com/nvandessel/competence/internal/update"
	"github.com/nvandessel/competence/internal/visualization"
)

const masteryResourceURI = "competence://learner/mastery"

// registerTools registers all competence MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "competence_evidence",
		Description: "Apply evidence about one or more competences (up or down, low/medium/high) and return the updated mastery",
	}, s.handleEvidence)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "competence_unit_result",
		Description: "Record the success or failure of a played content unit; every competence the unit requires moves accordingly",
	}, s.handleUnitResult)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "competence_mastery",
		Description: "Show the learner's mastery probability for every competence",
	}, s.handleMastery)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "competence_next",
		Description: "Select the next content unit for the learner and record it as played",
	}, s.handleNext)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "competence_reset",
		Description: "Discard the learner's progress and return to the initial mastery estimate",
	}, s.handleReset)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "competence_graph",
		Description: "Render the competence graph with mastery status in DOT (Graphviz), JSON, or HTML format",
	}, s.handleGraph)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         masteryResourceURI,
		Name:        "competence-learner-mastery",
		Description: "What the learner has mastered so far and what they are ready to learn next.",
		MIMEType:    "text/markdown",
	}, s.handleMasteryResource)
}

// handleMasteryResource summarises the learner's mastery as markdown.
func (s *Server) handleMasteryResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	s.mu.Lock()
	v := s.session.Vector()
	s.mu.Unlock()

	gr := visualization.Build(s.name, v)

	var sb strings.Builder
	sb.WriteString("# Learner Mastery\n\n")
	fmt.Fprintf(&sb, "Learner `%s` has mastered %d of %d competences (threshold %.2f).\n",
		s.session.LearnerID(), gr.MasteredCount, gr.NodeCount, gr.Threshold)

	sections := []struct {
		title  string
		status visualization.Status
	}{
		{"Mastered", visualization.StatusMastered},
		{"Ready to learn", visualization.StatusReady},
		{"Locked", visualization.StatusLocked},
	}
	for _, sec := range sections {
		var lines []string
		for _, n := range gr.Nodes {
			if n.Status != sec.status {
				continue
			}
			label := n.ID
			if n.Title != "" {
				label = fmt.Sprintf("%s (%s)", n.ID, sanitize.Label(n.Title))
			}
			lines = append(lines, fmt.Sprintf("- %s: %.0f%%", label, n.Probability*100))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n%s\n", sec.title, strings.Join(lines, "\n"))
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      masteryResourceURI,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// handleEvidence implements the competence_evidence tool.
func (s *Server) handleEvidence(ctx context.Context, req *sdk.CallToolRequest, args EvidenceInput) (_ *sdk.CallToolResult, _ UpdateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("competence_evidence", start, retErr, auditParams(map[string]any{
			"items": args.Items,
		}))
	}()

	if err := s.toolLimiters.Check("competence_evidence", s.session.LearnerID()); err != nil {
		return nil, UpdateOutput{}, err
	}
	if len(args.Items) == 0 {
		return nil, UpdateOutput{}, fmt.Errorf("'items' parameter is required")
	}

	var (
		items    []models.Evidence
		rejected []RejectedItem
	)
	for _, it := range args.Items {
		ev, err := parseItem(it)
		if err != nil {
			rejected = append(rejected, RejectedItem{
				Evidence: fmt.Sprintf("%s:%s:%s", it.CompetenceID, it.Direction, it.Strength),
				Reason:   err.Error(),
			})
			continue
		}
		items = append(items, ev)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.apply(ctx, func() (*update.BatchResult, error) {
		return s.session.ApplyEvidence(ctx, items)
	})
	if err != nil {
		return nil, UpdateOutput{}, err
	}
	out.Rejected = append(rejected, out.Rejected...)
	return nil, out, nil
}

// handleUnitResult implements the competence_unit_result tool.
func (s *Server) handleUnitResult(ctx context.Context, req *sdk.CallToolRequest, args UnitResultInput) (_ *sdk.CallToolResult, _ UpdateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("competence_unit_result", start, retErr, auditParams(map[string]any{
			"unit_id": args.UnitID,
			"success": args.Success,
		}))
	}()

	if err := s.toolLimiters.Check("competence_unit_result", s.session.LearnerID()); err != nil {
		return nil, UpdateOutput{}, err
	}
	unitID := sanitize.Identifier(args.UnitID)
	if unitID == "" {
		return nil, UpdateOutput{}, fmt.Errorf("'unit_id' parameter is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.apply(ctx, func() (*update.BatchResult, error) {
		return s.session.ApplyEvidenceForUnit(ctx, unitID, args.Success)
	})
	if err != nil {
		return nil, UpdateOutput{}, err
	}
	return nil, out, nil
}

// apply runs fn and reports the change it made to the mastery vector.
// The caller holds s.mu.
func (s *Server) apply(ctx context.Context, fn func() (*update.BatchResult, error)) (UpdateOutput, error) {
	before := s.session.Vector()
	res, err := fn()
	if err != nil {
		return UpdateOutput{}, err
	}
	after := s.session.Vector()

	out := UpdateOutput{
		Applied: res.Applied(),
		Crossed: crossed(before, after),
		Mastery: after.Ranked(),
	}
	for _, r := range res.Rejected {
		out.Rejected = append(out.Rejected, RejectedItem{Evidence: r.Evidence.String(), Reason: r.Reason})
	}
	return out, nil
}

// handleMastery implements the competence_mastery tool.
func (s *Server) handleMastery(ctx context.Context, req *sdk.CallToolRequest, args MasteryInput) (_ *sdk.CallToolResult, _ MasteryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("competence_mastery", start, retErr, auditParams(map[string]any{
			"mastered_only": args.MasteredOnly,
		}))
	}()

	if err := s.toolLimiters.Check("competence_mastery", s.session.LearnerID()); err != nil {
		return nil, MasteryOutput{}, err
	}

	s.mu.Lock()
	v := s.session.Vector()
	s.mu.Unlock()

	ranked := v.Ranked()
	out := MasteryOutput{
		Learner:     s.session.LearnerID(),
		Threshold:   v.Threshold(),
		Total:       len(ranked),
		Competences: make([]mastery.Entry, 0, len(ranked)),
	}
	for _, e := range ranked {
		if e.Mastered {
			out.MasteredCount++
		} else if args.MasteredOnly {
			continue
		}
		out.Competences = append(out.Competences, e)
	}
	return nil, out, nil
}

// handleNext implements the competence_next tool.
func (s *Server) handleNext(ctx context.Context, req *sdk.CallToolRequest, args NextInput) (_ *sdk.CallToolResult, _ NextOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("competence_next", start, retErr, auditParams(map[string]any{
			"explain": args.Explain,
		}))
	}()

	if err := s.toolLimiters.Check("competence_next", s.session.LearnerID()); err != nil {
		return nil, NextOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out NextOutput
	if args.Explain {
		out.Candidates = s.session.Candidates()
	}

	id, ok, err := s.session.NextUnit(ctx)
	if err != nil {
		return nil, NextOutput{}, fmt.Errorf("select next unit: %w", err)
	}
	if !ok {
		out.Exhausted = true
		return nil, out, nil
	}

	unit, _ := s.session.Domain().Content.Unit(id)
	out.Unit = &unit
	counts, _ := s.session.History()
	out.Plays = counts[id]
	return nil, out, nil
}

// handleReset implements the competence_reset tool.
func (s *Server) handleReset(ctx context.Context, req *sdk.CallToolRequest, args ResetInput) (_ *sdk.CallToolResult, _ ResetOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("competence_reset", start, retErr, auditParams(map[string]any{
			"confirm": args.Confirm,
		}))
	}()

	if err := s.toolLimiters.Check("competence_reset", s.session.LearnerID()); err != nil {
		return nil, ResetOutput{}, err
	}
	if !args.Confirm {
		return nil, ResetOutput{}, fmt.Errorf("reset requires confirm=true")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.ResetToInitial(ctx); err != nil {
		return nil, ResetOutput{}, fmt.Errorf("reset: %w", err)
	}
	return nil, ResetOutput{
		Message: fmt.Sprintf("Progress for learner %s reset to the initial estimate", s.session.LearnerID()),
	}, nil
}

// handleGraph implements the competence_graph tool.
func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("competence_graph", start, retErr, auditParams(map[string]any{
			"format": args.Format,
		}))
	}()

	if err := s.toolLimiters.Check("competence_graph", s.session.LearnerID()); err != nil {
		return nil, GraphOutput{}, err
	}

	name := args.Format
	if name == "" {
		name = string(visualization.FormatJSON)
	}
	format, err := visualization.ParseFormat(name)
	if err != nil {
		return nil, GraphOutput{}, err
	}

	s.mu.Lock()
	v := s.session.Vector()
	s.mu.Unlock()

	gr := visualization.Build(s.name, v)
	out := GraphOutput{Format: string(format), NodeCount: gr.NodeCount, EdgeCount: gr.EdgeCount}

	switch format {
	case visualization.FormatDOT:
		out.Graph = visualization.RenderDOT(gr)
	case visualization.FormatJSON:
		data, err := visualization.RenderJSON(gr)
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("render JSON: %w", err)
		}
		out.Graph = json.RawMessage(data)
	case visualization.FormatHTML:
		data, err := visualization.RenderHTML(gr)
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("render HTML: %w", err)
		}
		out.Graph = string(data)
	}
	return nil, out, nil
}

// parseItem converts a tool evidence item. Direction aliases accepted on
// the command line are accepted here too; strength defaults to medium.
func parseItem(it EvidenceItem) (models.Evidence, error) {
	id := sanitize.Identifier(it.CompetenceID)
	if id == "" {
		return models.Evidence{}, &models.ConfigError{Field: "competence_id", Reason: "empty competence id"}
	}
	dir, err := models.ParseDirection(it.Direction)
	if err != nil {
		return models.Evidence{}, err
	}
	strength := models.StrengthMedium
	if it.Strength != "" {
		strength, err = models.ParseStrength(it.Strength)
		if err != nil {
			return models.Evidence{}, err
		}
	}
	return models.Evidence{CompetenceID: id, Direction: dir, Strength: strength}, nil
}

// crossed lists competences whose mastered status differs between a and b,
// in graph order.
func crossed(a, b *mastery.Vector) []string {
	var out []string
	for i := 0; i < a.Len(); i++ {
		if a.MasteredAt(i) != b.MasteredAt(i) {
			out = append(out, a.Graph().ID(i))
		}
	}
	return out
}

// Package visualization renders a competence graph coloured by a learner's
// mastery as Graphviz DOT, JSON or a standalone HTML page.
package visualization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/models"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatJSON, FormatHTML:
		return f, nil
	default:
		return "", &models.ConfigError{Field: "format", Reason: fmt.Sprintf("unknown graph format %q (valid: dot, json, html)", s)}
	}
}

// Status classifies a competence for display.
type Status string

const (
	StatusMastered Status = "mastered"
	StatusReady    Status = "ready"  // unmastered, every direct prerequisite mastered
	StatusLocked   Status = "locked" // unmastered with an unmastered prerequisite
)

// statusColors maps a status to a DOT fill colour.
var statusColors = map[Status]string{
	StatusMastered: "mediumseagreen",
	StatusReady:    "goldenrod",
	StatusLocked:   "lightgray",
}

// Node is one competence in a rendered graph.
type Node struct {
	ID            string   `json:"id"`
	Title         string   `json:"title,omitempty"`
	Probability   float64  `json:"probability"`
	Status        Status   `json:"status"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

// Edge points from a prerequisite to the competence that requires it.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the renderable form of a mastery vector over its graph.
type Graph struct {
	Domain        string  `json:"domain,omitempty"`
	Threshold     float64 `json:"threshold"`
	Nodes         []Node  `json:"nodes"`
	Edges         []Edge  `json:"edges"`
	NodeCount     int     `json:"node_count"`
	EdgeCount     int     `json:"edge_count"`
	MasteredCount int     `json:"mastered_count"`
}

// Build collects nodes in graph order and one edge per direct prerequisite.
func Build(name string, v *mastery.Vector) *Graph {
	g := v.Graph()
	out := &Graph{Domain: name, Threshold: v.Threshold(), Nodes: make([]Node, 0, g.Len()), Edges: []Edge{}}

	for _, id := range g.IDs() {
		p, _ := v.Get(id)
		prereqs := g.Prerequisites(id)
		n := Node{ID: id, Title: g.Title(id), Probability: p, Prerequisites: prereqs, Status: StatusReady}
		switch {
		case v.Mastered(id):
			n.Status = StatusMastered
			out.MasteredCount++
		default:
			for _, pr := range prereqs {
				if !v.Mastered(pr) {
					n.Status = StatusLocked
					break
				}
			}
		}
		out.Nodes = append(out.Nodes, n)
		for _, pr := range prereqs {
			out.Edges = append(out.Edges, Edge{Source: pr, Target: id})
		}
	}
	out.NodeCount = len(out.Nodes)
	out.EdgeCount = len(out.Edges)
	return out
}

// RenderDOT produces a Graphviz DOT representation of the graph.
func RenderDOT(gr *Graph) string {
	var b strings.Builder
	b.WriteString("digraph competence {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=filled, fontname=\"Helvetica\"];\n\n")

	for _, n := range gr.Nodes {
		label := n.ID
		if n.Title != "" {
			label += "\n" + truncate(n.Title, 32)
		}
		label += fmt.Sprintf("\n%.2f", n.Probability)
		fmt.Fprintf(&b, "  %q [label=%q, fillcolor=%q, tooltip=\"p=%.4f %s\"];\n",
			n.ID, label, statusColors[n.Status], n.Probability, n.Status)
	}
	b.WriteString("\n")
	for _, e := range gr.Edges {
		fmt.Fprintf(&b, "  %q -> %q;\n", e.Source, e.Target)
	}
	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces an indented JSON document.
func RenderJSON(gr *Graph) ([]byte, error) {
	data, err := json.MarshalIndent(gr, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	return append(data, '\n'), nil
}

var pageTemplate = template.Must(template.New("graph").Funcs(template.FuncMap{
	"percent": func(p float64) string { return fmt.Sprintf("%.0f", p*100) },
	"color":   func(s Status) string { return statusColors[s] },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{if .Domain}}{{.Domain}} - {{end}}competence mastery</title>
<style>
body { font-family: Helvetica, sans-serif; margin: 2em; }
td { padding: 4px 8px; }
.bar { height: 12px; background: #eee; width: 200px; }
.fill { height: 12px; }
</style>
</head>
<body>
<h1>{{if .Domain}}{{.Domain}}{{else}}Competences{{end}}</h1>
<p>{{.MasteredCount}} of {{.NodeCount}} mastered (threshold {{percent .Threshold}}%)</p>
<table>
<tr><th>Competence</th><th>Title</th><th>Mastery</th><th>Status</th><th>Requires</th></tr>
{{range .Nodes}}<tr>
<td>{{.ID}}</td><td>{{.Title}}</td>
<td><div class="bar"><div class="fill" style="width: {{percent .Probability}}%; background: {{color .Status}}"></div></div></td>
<td>{{.Status}}</td><td>{{range $i, $p := .Prerequisites}}{{if $i}}, {{end}}{{$p}}{{end}}</td>
</tr>
{{end}}</table>
</body>
</html>
`))

// RenderHTML produces a self-contained HTML page listing every competence
// with a mastery bar. Titles are escaped by html/template.
func RenderHTML(gr *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, gr); err != nil {
		return nil, fmt.Errorf("execute HTML template: %w", err)
	}
	return buf.Bytes(), nil
}

// Render builds the graph for v and encodes it in format.
func Render(name string, v *mastery.Vector, format Format) ([]byte, error) {
	gr := Build(name, v)
	switch format {
	case FormatDOT:
		return []byte(RenderDOT(gr)), nil
	case FormatJSON:
		return RenderJSON(gr)
	case FormatHTML:
		return RenderHTML(gr)
	default:
		return nil, &models.ConfigError{Field: "format", Reason: fmt.Sprintf("unknown graph format %q", format)}
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

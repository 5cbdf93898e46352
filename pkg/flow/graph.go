package flow

import (
	"fmt"
	"strings"
)

// Edge is one option of a state.
type Edge struct {
	From   string `json:"from"`
	Token  string `json:"token"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Graph is a serializable view of a definition.
type Graph struct {
	Entry      string   `json:"entry"`
	End        string   `json:"end,omitempty"`
	ResetToken string   `json:"reset_token"`
	PingToken  string   `json:"ping_token,omitempty"`
	States     []*State `json:"states"`
	Edges      []Edge   `json:"edges"`
}

func (d *Definition) Graph() Graph {
	g := Graph{
		Entry:      d.entry,
		End:        d.end,
		ResetToken: d.resetToken,
		PingToken:  d.pingToken,
		States:     make([]*State, 0, len(d.states)),
		Edges:      []Edge{},
	}
	for _, id := range d.StateIDs() {
		st := d.states[id]
		g.States = append(g.States, st)
		for _, token := range st.OptionKeys() {
			t := st.Options[token]
			g.Edges = append(g.Edges, Edge{From: id, Token: token, Target: t.Target, Label: t.Label})
		}
	}
	return g
}

// DOT renders the graph in Graphviz format. The entry state is drawn bold,
// final states double circled and the end state as a box.
func (g Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph flow {\n\trankdir=LR;\n")
	for _, st := range g.States {
		var attrs []string
		switch {
		case st.ID == g.End:
			attrs = append(attrs, "shape=box")
		case st.Final:
			attrs = append(attrs, "shape=doublecircle")
		default:
			attrs = append(attrs, "shape=circle")
		}
		if st.ID == g.Entry {
			attrs = append(attrs, "style=bold")
		}
		if st.Media != nil {
			attrs = append(attrs, fmt.Sprintf("xlabel=%q", string(st.Media.Kind)))
		}
		fmt.Fprintf(&b, "\t%q [%s];\n", st.ID, strings.Join(attrs, ", "))
	}
	for _, e := range g.Edges {
		label := e.Token
		if e.Label != "" {
			label += ": " + e.Label
		}
		fmt.Fprintf(&b, "\t%q -> %q [label=%q];\n", e.From, e.Target, label)
	}
	b.WriteString("}\n")
	return b.String()
}

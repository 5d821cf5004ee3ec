// Package render draws validated topologies as DOT or Mermaid graphs.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emicklei/dot"

	"github.com/artpar/topoplan/internal/core/topology"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// ParseFormat returns the format named by s. An empty string means DOT.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatDOT:
		return FormatDOT, nil
	case FormatMermaid:
		return FormatMermaid, nil
	}
	return "", fmt.Errorf("unknown graph format %q (want dot or mermaid)", s)
}

// Options controls what is drawn.
type Options struct {
	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// Plan, when set, prefixes unit labels with their rollout step.
	Plan *topology.Plan

	// ShowPorts adds the unit's port bindings to its label.
	ShowPorts bool
}

// Render writes the graph of g and its load-balancer targets to w.
// Edges point from dependent to dependency; listeners are drawn as dashed
// ellipses pointing at the unit they target.
func Render(w io.Writer, g *topology.Graph, targets []topology.Target, opts Options) error {
	graph := build(g, targets, opts)

	var output string
	if opts.Format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := io.WriteString(w, output)
	return err
}

// String is a convenience wrapper returning the rendered graph.
func String(g *topology.Graph, targets []topology.Target, opts Options) (string, error) {
	var sb strings.Builder
	if err := Render(&sb, g, targets, opts); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func build(g *topology.Graph, targets []topology.Target, opts Options) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	nodes := make(map[string]dot.Node)
	for _, u := range g.Units() {
		n := graph.Node(u.Name)
		n.Label(label(u, opts))
		nodes[u.Name] = n
	}

	for _, e := range g.Edges() {
		graph.Edge(nodes[e.Dependent], nodes[e.Dependency])
	}

	if len(targets) > 0 {
		lb := graph.Subgraph("cluster_listeners", dot.ClusterOption{})
		lb.Attr("label", "load balancer")
		lb.Attr("style", "rounded")
		for _, t := range targets {
			id := "lb:" + strconv.Itoa(t.ListenerPort) + "/" + string(t.Protocol)
			listener := lb.Node(id)
			listener.Attr("shape", "ellipse")
			listener.Label(fmt.Sprintf("%s :%d", t.Protocol, t.ListenerPort))

			to, ok := nodes[t.Unit]
			if !ok {
				to = graph.Node(t.Unit)
				to.Attr("color", "red")
				nodes[t.Unit] = to
			}
			edge := graph.Edge(listener, to)
			edge.Label(strconv.Itoa(t.Port))

			// Mermaid copies node styles verbatim into "style" lines and
			// only understands CSS there.
			if opts.Format == FormatMermaid {
				listener.Attr("style", "stroke-dasharray: 5 5")
			} else {
				listener.Attr("style", "dashed")
				edge.Attr("style", "dashed")
			}
		}
	}

	return graph
}

func label(u topology.Unit, opts Options) string {
	name := u.Name
	if opts.Plan != nil {
		if pos := opts.Plan.Position(u.Name); pos >= 0 {
			name = fmt.Sprintf("%d. %s", pos+1, u.Name)
		}
	}

	text := name + "\\n[" + u.Image + "]"
	if opts.ShowPorts && len(u.Ports) > 0 {
		ports := make([]string, 0, len(u.Ports))
		for _, p := range u.Ports {
			ports = append(ports, fmt.Sprintf("%d/%s", p.Port, p.Protocol))
		}
		text += "\\n" + strings.Join(ports, ", ")
	}
	return text
}

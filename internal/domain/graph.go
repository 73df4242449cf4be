package domain

import (
	"encoding/json"
)

// Node types of the definition graph.
const (
	NodeTypeStart    = "start"
	NodeTypeApproval = "approval"
	NodeTypeEnd      = "end"
)

// Triggers on edges leaving an approval node. RequestChanges is accepted as a
// decision trigger but is resolved as a hard-coded status transition, never
// through the edge index.
const (
	TriggerApprove        = "approve"
	TriggerReject         = "reject"
	TriggerRequestChanges = "request_changes"
)

// Terminal statuses carried by end nodes.
const (
	EndStatusApproved = "approved"
	EndStatusRejected = "rejected"
)

// GraphNode is one step of the definition graph.
type GraphNode struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"` // terminal status, end nodes only
}

// GraphEdge is one transition of the definition graph. Trigger is empty for
// edges leaving the start node and carries the routing trigger for edges
// leaving approval nodes.
type GraphEdge struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Trigger string `json:"trigger,omitempty"`
}

// FormField is one entry of the optional form section of a definition.
type FormField struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Label    string            `json:"label"`
	Required bool              `json:"required,omitempty"`
	Options  []json.RawMessage `json:"options,omitempty"`
}

// FormDefinition is the optional form section of a definition.
type FormDefinition struct {
	Fields []FormField `json:"fields"`
}

// graphDoc is the JSON shape of a definition document.
type graphDoc struct {
	Form        *FormDefinition `json:"form,omitempty"`
	Steps       []GraphNode     `json:"steps"`
	Transitions []GraphEdge     `json:"transitions"`
}

type edgeKey struct {
	from    string
	trigger string
}

// Graph is the validated in-memory form of a definition document: a node map
// plus an edge index keyed by (from node, trigger). It is built once per
// loaded definition instead of re-parsed on every decision.
type Graph struct {
	nodes map[string]GraphNode
	order []string
	edges map[edgeKey]string
	all   []GraphEdge
	form  *FormDefinition
}

// ParseGraph decodes a definition document into a Graph. It accepts any
// structurally well-formed document; semantic checks live in
// ValidateDefinition.
func ParseGraph(raw json.RawMessage) (*Graph, error) {
	var doc graphDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, BadRequestf("definition is not a valid graph document: %v", err)
	}
	g := &Graph{
		nodes: make(map[string]GraphNode, len(doc.Steps)),
		order: make([]string, 0, len(doc.Steps)),
		edges: make(map[edgeKey]string, len(doc.Transitions)),
		all:   doc.Transitions,
		form:  doc.Form,
	}
	for _, n := range doc.Steps {
		if _, seen := g.nodes[n.ID]; !seen {
			g.order = append(g.order, n.ID)
		}
		g.nodes[n.ID] = n
	}
	for _, e := range doc.Transitions {
		g.edges[edgeKey{from: e.From, trigger: e.Trigger}] = e.To
	}
	return g, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (GraphNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in document order.
func (g *Graph) Nodes() []GraphNode {
	out := make([]GraphNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns all edges in document order.
func (g *Graph) Edges() []GraphEdge { return g.all }

// Form returns the optional form section, or nil.
func (g *Graph) Form() *FormDefinition { return g.form }

// Start returns the start node.
func (g *Graph) Start() (GraphNode, bool) {
	for _, id := range g.order {
		if g.nodes[id].Type == NodeTypeStart {
			return g.nodes[id], true
		}
	}
	return GraphNode{}, false
}

// Next resolves the edge leaving from with the given trigger and returns its
// target node. Edges out of the start node carry no trigger; pass "".
func (g *Graph) Next(from, trigger string) (GraphNode, bool) {
	to, ok := g.edges[edgeKey{from: from, trigger: trigger}]
	if !ok {
		return GraphNode{}, false
	}
	n, ok := g.nodes[to]
	return n, ok
}

// ApprovalNodes returns the approval nodes in document order. This order is
// the order steps are materialized in at submission time.
func (g *Graph) ApprovalNodes() []GraphNode {
	var out []GraphNode
	for _, id := range g.order {
		if g.nodes[id].Type == NodeTypeApproval {
			out = append(out, g.nodes[id])
		}
	}
	return out
}

// FirstApproval resolves the start node's outgoing edge to the first approval
// node of the graph.
func (g *Graph) FirstApproval() (GraphNode, error) {
	start, ok := g.Start()
	if !ok {
		return GraphNode{}, BadRequest("definition has no start step")
	}
	next, ok := g.Next(start.ID, "")
	if !ok {
		return GraphNode{}, BadRequest("start step has no outgoing transition")
	}
	if next.Type != NodeTypeApproval {
		return GraphNode{}, BadRequestf("start step must lead to an approval step, got %q", next.Type)
	}
	return next, nil
}

// TerminalInstanceStatus maps an end node's terminal status onto the instance
// status it produces.
func TerminalInstanceStatus(end GraphNode) (InstanceStatus, error) {
	switch end.Status {
	case EndStatusApproved:
		return InstanceStatusApproved, nil
	case EndStatusRejected:
		return InstanceStatusRejected, nil
	}
	return "", BadRequestf("end step %q carries no terminal status", end.ID)
}

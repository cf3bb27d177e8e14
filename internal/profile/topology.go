package profile

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TopologyError reports a malformed or self-inconsistent topology JSON
// block.
type TopologyError struct {
	Reason string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("invalid topology: %s", e.Reason)
}

// TopologyGraph is the authoritative source of parent/child edges between
// plan nodes, independent of the physical fragment listing.
type TopologyGraph struct {
	RootID int
	Nodes  []TopologyNode

	// SinkID is the id of the terminal sink operator, either found among
	// the JSON nodes or synthesized from the fragment listing. -1 when no
	// sink candidate exists.
	SinkID int
}

type TopologyNode struct {
	ID         int               `json:"id"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`
	Children   []int             `json:"children"`
}

type rawTopology struct {
	RootID *int           `json:"rootId"`
	Nodes  []TopologyNode `json:"nodes"`
}

// Sink selection priority. The topology JSON frequently omits the terminal
// sink, so candidates are ranked and a node is synthesized when the winner
// is absent from the parsed node set.
var sinkPriority = map[string]int{
	"RESULT_SINK":         5,
	"OLAP_TABLE_SINK":     4,
	"EXCHANGE_SINK":       2,
	"LOCAL_EXCHANGE_SINK": 1,
}

func sinkRank(name string) int {
	if !strings.HasSuffix(name, "_SINK") {
		return 0
	}
	if r, ok := sinkPriority[name]; ok {
		return r
	}
	return 3
}

// ParseTopology decodes the topology JSON alone.
func ParseTopology(topologyJSON string) (*TopologyGraph, error) {
	var raw rawTopology
	if err := json.Unmarshal([]byte(topologyJSON), &raw); err != nil {
		return nil, &TopologyError{Reason: err.Error()}
	}
	if raw.RootID == nil {
		return nil, &TopologyError{Reason: "missing rootId"}
	}
	if len(raw.Nodes) == 0 {
		return nil, &TopologyError{Reason: "empty node list"}
	}
	return &TopologyGraph{RootID: *raw.RootID, Nodes: raw.Nodes, SinkID: -1}, nil
}

// ParseTopologyWithFragments decodes the topology JSON and reconciles it
// with the fragment listing's sink operators.
func ParseTopologyWithFragments(topologyJSON string, fragments []Fragment) (*TopologyGraph, error) {
	g, err := ParseTopology(topologyJSON)
	if err != nil {
		return nil, err
	}

	sinkName := bestSinkName(fragments)
	if sinkName == "" {
		return g, nil
	}

	for _, n := range g.Nodes {
		if n.Name == sinkName {
			g.SinkID = n.ID
			return g, nil
		}
	}

	// Synthesize a node for the missing sink so tree construction has a
	// well-defined root candidate.
	id := 0
	for _, n := range g.Nodes {
		if n.ID >= id {
			id = n.ID + 1
		}
	}
	g.Nodes = append(g.Nodes, TopologyNode{
		ID:       id,
		Name:     sinkName,
		Children: []int{g.RootID},
	})
	g.SinkID = id
	return g, nil
}

func bestSinkName(fragments []Fragment) string {
	best := ""
	bestRank := 0
	for _, f := range fragments {
		for _, p := range f.Pipelines {
			for _, op := range p.Operators {
				if r := sinkRank(op.Name); r > bestRank {
					best = op.Name
					bestRank = r
				}
			}
		}
	}
	return best
}

// Validate checks self-consistency: every declared child id and the root id
// must exist among the node ids.
func (g *TopologyGraph) Validate() error {
	ids := make(map[int]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	if !ids[g.RootID] {
		return &TopologyError{Reason: fmt.Sprintf("root id %d not among nodes", g.RootID)}
	}
	for _, n := range g.Nodes {
		for _, c := range n.Children {
			if !ids[c] {
				return &TopologyError{Reason: fmt.Sprintf("node %d references unknown child %d", n.ID, c)}
			}
		}
	}
	return nil
}

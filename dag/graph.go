package dag

import (
	"io"

	"dag-ledger/models"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

var (
	fontsizeAttribute  = graph.VertexAttribute("fontsize", "10")
	poolNodeAttributes = []func(*graph.VertexProperties){
		fontsizeAttribute,
		graph.VertexAttribute("colorscheme", "blues3"),
		graph.VertexAttribute("style", "filled"),
		graph.VertexAttribute("color", "2"),
		graph.VertexAttribute("fillcolor", "1"),
	}
	tipAttributes = []func(*graph.VertexProperties){
		fontsizeAttribute,
		graph.VertexAttribute("colorscheme", "bugn9"),
		graph.VertexAttribute("style", "filled"),
		graph.VertexAttribute("color", "9"),
		graph.VertexAttribute("fillcolor", "3"),
		graph.VertexAttribute("penwidth", "3"),
	}
	looseNodeAttributes = []func(*graph.VertexProperties){
		fontsizeAttribute,
		graph.VertexAttribute("style", "dashed"),
	}
	finalisedAttributes = []func(*graph.VertexProperties){
		fontsizeAttribute,
		graph.VertexAttribute("shape", "box"),
	}
)

// MakeGraph builds the graph of the live pool and the loose nodes
func (d *DAG) MakeGraph() graph.Graph[string, string] {
	d.mux.Lock()
	defer d.mux.Unlock()

	ret := graph.New(graph.StringHash, graph.Directed())
	edges := make(map[string][]models.Hash)
	for h, node := range d.pool {
		attr := poolNodeAttributes
		if _, isTip := d.tipByNode[h]; isTip {
			attr = tipAttributes
		}
		_ = ret.AddVertex(h.Short(), attr...)
		edges[h.Short()] = node.Previous
	}
	for h, node := range d.loose {
		_ = ret.AddVertex(h.Short(), looseNodeAttributes...)
		edges[h.Short()] = node.Previous
	}
	for from, previous := range edges {
		for _, p := range previous {
			if _, err := ret.Vertex(p.Short()); err != nil {
				// finalised or still missing
				_ = ret.AddVertex(p.Short(), finalisedAttributes...)
			}
			_ = ret.AddEdge(from, p.Short())
		}
	}
	return ret
}

// WriteDOT writes the graph in graphviz format
func (d *DAG) WriteDOT(w io.Writer) error {
	return draw.DOT(d.MakeGraph(), w)
}

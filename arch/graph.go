package arch

import (
	"fmt"
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint
)

// kindRGB holds the fill colour of each stage kind.
var kindRGB = map[Kind][3]uint8{
	KindInput:      {220, 220, 220},
	KindDown:       {158, 202, 225},
	KindBottleneck: {253, 174, 107},
	KindUp:         {161, 217, 155},
	KindHead:       {218, 218, 235},
}

func kindColor(k Kind) (string, error) {
	rgb, ok := kindRGB[k]
	if !ok {
		rgb = [3]uint8{255, 255, 255}
	}
	c, err := colors.RGB(rgb[0], rgb[1], rgb[2])
	if err != nil {
		return "", errors.Wrap(err, "unable to get colour")
	}

	return c.ToHEX().String(), nil
}

// Graph builds the stage DAG: one vertex per stage, a solid edge along the
// forward path and a dashed edge from every down stage to the up stage that
// consumes its skip map.
func (p *Plan) Graph() (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())

	for _, s := range p.Stages {
		fill, err := kindColor(s.Kind)
		if err != nil {
			return nil, err
		}
		label := fmt.Sprintf(`%s\n%s`, s.Name, s.Out)
		err = g.AddVertex(s.Name,
			graph.VertexAttribute("label", label),
			graph.VertexAttribute("shape", "box"),
			graph.VertexAttribute("style", "filled"),
			graph.VertexAttribute("fillcolor", fill),
		)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to add vertex %s", s.Name)
		}
	}

	for i := 1; i < len(p.Stages); i++ {
		parent, child := p.Stages[i-1].Name, p.Stages[i].Name
		if err := g.AddEdge(parent, child); err != nil {
			return nil, errors.Wrapf(err, "unable to add edge from %s to %s", parent, child)
		}
	}

	for _, s := range p.Stages {
		if s.Kind != KindUp {
			continue
		}
		err := g.AddEdge(s.SkipFrom, s.Name,
			graph.EdgeAttribute("style", "dashed"),
			graph.EdgeAttribute("label", s.Skip.String()),
		)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to add skip edge from %s to %s", s.SkipFrom, s.Name)
		}
	}

	return g, nil
}

// WriteDOT writes the stage graph in graphviz DOT format.
func (p *Plan) WriteDOT(w io.Writer) error {
	g, err := p.Graph()
	if err != nil {
		return err
	}

	err = draw.DOT(g, w, draw.GraphAttribute("rankdir", "TB"))
	if err != nil {
		return errors.Wrap(err, "unable to render dot")
	}

	return nil
}

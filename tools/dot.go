package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"strings"

	"github.com/coxswain-io/coxswain/core"
)

// Dot makes a Graphviz dot file for the given operation tree.  A
// really ugly dot file.
//
// Leaf operations are boxes; combinators (concat, merge) are
// ellipses with an edge per branch.
func Dot[A any](op *core.Op[A], w io.Writer) error {
	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]
`)

	num := 0
	var walk func(op *core.Op[A]) string
	walk = func(op *core.Op[A]) string {
		num++
		nid := fmt.Sprintf("n%d", num)

		label := opLabel(op)
		shape := "record"
		fillcolor := "#99ddc8"
		switch op.Kind() {
		case core.OpConcat, core.OpMerge:
			shape = "ellipse"
			fillcolor = "#2d93ad"
		case core.OpTask, core.OpRun, core.OpStream:
			shape = "note"
			fillcolor = "#52aa5e"
		case core.OpCancel:
			fillcolor = "#f98b8b"
		}
		fmt.Fprintf(w, "  %s [shape=\"%s\", fillcolor=\"%s\", label=\"%s\"]\n",
			nid, shape, fillcolor, escapeDot(label))

		for _, kid := range op.Children() {
			kidID := walk(kid)
			fmt.Fprintf(w, "  %s -> %s\n", nid, kidID)
		}
		return nid
	}

	if op != nil {
		walk(op)
	}

	fmt.Fprintf(w, "}\n")
	return nil
}

// opLabel summarizes one operation (ignoring its branches).
func opLabel[A any](op *core.Op[A]) string {
	label := op.Kind().String()
	if id := op.ID(); id != "" {
		label += " " + id
	}
	switch op.Kind() {
	case core.OpTimer:
		label += fmt.Sprintf(" @%s", op.Interval())
	case core.OpCron:
		label += fmt.Sprintf(" @%s", op.Expr())
	}
	return label
}

func escapeDot(s string) string {
	return strings.Replace(s, `"`, `\"`, -1)
}

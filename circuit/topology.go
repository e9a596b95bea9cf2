// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package circuit

// TopologicalOrder returns every node exactly once, predecessors before
// successors.  Kahn's algorithm, seeded by nodes with zero inputs or of a
// flip-flop kind.  Flip-flops act as sources and sinks at once: their
// outputs are visited, but their inputs never count toward successor
// readiness -- this is what breaks the sequential loops.
func (c *Circuit) TopologicalOrder() []*Node {
	visit := make([]int, len(c.Nodes))
	queue := make([]*Node, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		if len(n.ILines) == 0 || n.Kind.IsDFF() {
			queue = append(queue, n)
		}
	}
	order := make([]*Node, 0, len(c.Nodes))
	for qi := 0; qi < len(queue); qi++ {
		n := queue[qi]
		for _, l := range n.OLines {
			if l == nil {
				continue
			}
			succ := l.Reader
			visit[succ.Index]++
			if visit[succ.Index] == len(succ.ILines) && !succ.Kind.IsDFF() {
				queue = append(queue, succ)
			}
		}
		order = append(order, n)
	}
	return order
}

// TopologicalLineOrder returns all lines, driver nodes in topological
// order, pins in position order.
func (c *Circuit) TopologicalLineOrder() []*Line {
	lines := make([]*Line, 0, len(c.Lines))
	for _, n := range c.TopologicalOrder() {
		for _, l := range n.OLines {
			if l != nil {
				lines = append(lines, l)
			}
		}
	}
	return lines
}

// ReversedTopologicalOrder is the dual of TopologicalOrder: seeded by
// zero-output and flip-flop nodes, decrementing output counts.
func (c *Circuit) ReversedTopologicalOrder() []*Node {
	visit := make([]int, len(c.Nodes))
	queue := make([]*Node, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		if len(n.OLines) == 0 || n.Kind.IsDFF() {
			queue = append(queue, n)
		}
	}
	order := make([]*Node, 0, len(c.Nodes))
	for qi := 0; qi < len(queue); qi++ {
		n := queue[qi]
		for _, l := range n.ILines {
			if l == nil {
				continue
			}
			pred := l.Driver
			visit[pred.Index]++
			if visit[pred.Index] == len(pred.OLines) && !pred.Kind.IsDFF() {
				queue = append(queue, pred)
			}
		}
		order = append(order, n)
	}
	return order
}

// Fanin returns the transitive fan-in of the origin nodes (the origins
// included), in reverse-topological order: a reverse sweep marking every
// node with a marked successor.
func (c *Circuit) Fanin(origins []*Node) []*Node {
	marks := make([]bool, len(c.Nodes))
	for _, n := range origins {
		marks[n.Index] = true
	}
	var fanin []*Node
	for _, n := range c.ReversedTopologicalOrder() {
		if !marks[n.Index] {
			for _, l := range n.OLines {
				if l != nil && marks[l.Reader.Index] {
					marks[n.Index] = true
					break
				}
			}
		}
		if marks[n.Index] {
			fanin = append(fanin, n)
		}
	}
	return fanin
}

// FFR is a fanout-free region: the maximal single-output cone feeding a
// stem node.
type FFR struct {
	Stem   *Node
	Region []*Node
}

// singleOutNonDFF reports whether n can be absorbed into a fanout-free
// region: exactly one output and not a flip-flop.
func singleOutNonDFF(n *Node) bool {
	return len(n.OLines) == 1 && !n.Kind.IsDFF()
}

// FanoutFreeRegions yields one FFR per stem.  Stems are nodes with an
// output count other than one, plus all flip-flops.  The region is the
// set of predecessors reachable through single-output non-flip-flop
// nodes; for a flip-flop stem only the data-input cone is walked.
func (c *Circuit) FanoutFreeRegions() []FFR {
	var regions []FFR
	for _, stem := range c.ReversedTopologicalOrder() {
		if len(stem.OLines) == 1 && !stem.Kind.IsDFF() {
			continue
		}
		var queue []*Node
		if stem.Kind.IsDFF() {
			if len(stem.ILines) > 0 && stem.ILines[0] != nil {
				if d := stem.ILines[0].Driver; singleOutNonDFF(d) {
					queue = append(queue, d)
				}
			}
		} else {
			for _, l := range stem.ILines {
				if l != nil && singleOutNonDFF(l.Driver) {
					queue = append(queue, l.Driver)
				}
			}
		}
		var region []*Node
		for qi := 0; qi < len(queue); qi++ {
			n := queue[qi]
			for _, l := range n.ILines {
				if l != nil && singleOutNonDFF(l.Driver) {
					queue = append(queue, l.Driver)
				}
			}
			region = append(region, n)
		}
		regions = append(regions, FFR{Stem: stem, Region: region})
	}
	return regions
}

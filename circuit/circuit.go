// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package circuit implements the gate-level netlist graph that the waveform
simulator operates on.  The graph has two node classes: cells (gates of a
named kind, up to 2 inputs and 2 outputs) and forks (pure fan-out nodes,
one input, any number of outputs).  Every multi-fanout net must be
materialized as an explicit fork node; forks are the unit on which
interconnect delays are annotated.

Lines are directed edges (driver node/pin -> reader node/pin) with stable
integer indices into the circuit's flat line list.  The delay table and the
compiled op list are both indexed by line index, so lines keep their
position as the graph grows; only removal moves an element: node and line
removal use swap-remove, updating the moved element's Index.
*/
package circuit

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateName is returned when a cell or fork name collides within
// its class.
var ErrDuplicateName = errors.New("duplicate node name")

// Node is a cell or fork in the circuit.  ILines and OLines are dense
// per-pin slices; an unconnected pin holds nil.
type Node struct {

	// Circuit this node belongs to; nil after removal.
	Circuit *Circuit

	// Index is the slot in Circuit.Nodes; updated on swap-remove.
	Index int

	// Name is unique within the node's class (cells vs forks).
	Name string

	// Kind is the resolved gate class.
	Kind Kind

	// KindName is the raw netlist kind string, e.g. NAND2X1.  External
	// pin-index functions key off this.
	KindName string

	// ILines[p] is the line read on input pin p, or nil.
	ILines []*Line

	// OLines[p] is the line driven from output pin p, or nil.
	OLines []*Line
}

// Line is a directed edge between two node pins.
type Line struct {

	// Index is the slot in Circuit.Lines; updated on swap-remove.
	Index int

	Driver    *Node
	DriverPin int
	Reader    *Node
	ReaderPin int
}

func (l *Line) String() string {
	return fmt.Sprintf("%d", l.Index)
}

// Circuit is a netlist graph.  Interface lists the primary interface nodes
// in port order; the simulator follows a copy of it with all flip-flop
// nodes in node order to form the full PPI/PPO boundary, leaving this list
// unchanged.
type Circuit struct {
	Name      string
	Nodes     []*Node
	Lines     []*Line
	Interface []*Node

	// Cells and Forks map names to nodes, per class.
	Cells map[string]*Node
	Forks map[string]*Node
}

// NewCircuit returns an empty circuit with the given name.
func NewCircuit(name string) *Circuit {
	return &Circuit{
		Name:  name,
		Cells: map[string]*Node{},
		Forks: map[string]*Node{},
	}
}

func (c *Circuit) addNode(name, kind string) *Node {
	n := &Node{
		Circuit:  c,
		Index:    len(c.Nodes),
		Name:     name,
		Kind:     KindOf(kind),
		KindName: kind,
	}
	c.Nodes = append(c.Nodes, n)
	return n
}

// AddCell adds a gate of the given netlist kind.
// Fails with ErrDuplicateName if a cell of that name already exists.
func (c *Circuit) AddCell(name, kind string) (*Node, error) {
	if _, ok := c.Cells[name]; ok {
		return nil, fmt.Errorf("%w: cell %q", ErrDuplicateName, name)
	}
	n := c.addNode(name, kind)
	c.Cells[name] = n
	return n, nil
}

// AddFork adds a fan-out node.
// Fails with ErrDuplicateName if a fork of that name already exists.
func (c *Circuit) AddFork(name string) (*Node, error) {
	if _, ok := c.Forks[name]; ok {
		return nil, fmt.Errorf("%w: fork %q", ErrDuplicateName, name)
	}
	n := c.addNode(name, ForkKind)
	c.Forks[name] = n
	return n, nil
}

// GetOrAddFork returns the fork of the given name, adding it if needed.
func (c *Circuit) GetOrAddFork(name string) *Node {
	if n, ok := c.Forks[name]; ok {
		return n
	}
	n, _ := c.AddFork(name)
	return n
}

// FirstUnconnectedIn returns the lowest input pin with no line attached.
func (n *Node) FirstUnconnectedIn() int {
	for p, l := range n.ILines {
		if l == nil {
			return p
		}
	}
	return len(n.ILines)
}

// FirstUnconnectedOut returns the lowest output pin with no line attached.
func (n *Node) FirstUnconnectedOut() int {
	for p, l := range n.OLines {
		if l == nil {
			return p
		}
	}
	return len(n.OLines)
}

// setILine grows the pin slice as needed and attaches l at pin p.
func (n *Node) setILine(p int, l *Line) {
	for len(n.ILines) <= p {
		n.ILines = append(n.ILines, nil)
	}
	n.ILines[p] = l
}

func (n *Node) setOLine(p int, l *Line) {
	for len(n.OLines) <= p {
		n.OLines = append(n.OLines, nil)
	}
	n.OLines[p] = l
}

// Connect adds a line from driver to reader, using the first unconnected
// output pin of driver and the first unconnected input pin of reader.
func (c *Circuit) Connect(driver, reader *Node) *Line {
	return c.ConnectPins(driver, driver.FirstUnconnectedOut(), reader, reader.FirstUnconnectedIn())
}

// ConnectPins adds a line between explicit pins.
func (c *Circuit) ConnectPins(driver *Node, dpin int, reader *Node, rpin int) *Line {
	l := &Line{
		Index:     len(c.Lines),
		Driver:    driver,
		DriverPin: dpin,
		Reader:    reader,
		ReaderPin: rpin,
	}
	c.Lines = append(c.Lines, l)
	driver.setOLine(dpin, l)
	reader.setILine(rpin, l)
	return l
}

// RemoveLine detaches l from its endpoint pins and removes it from the
// line list by swap-remove, updating the moved line's Index.
func (c *Circuit) RemoveLine(l *Line) {
	if l.Driver != nil && l.DriverPin < len(l.Driver.OLines) && l.Driver.OLines[l.DriverPin] == l {
		l.Driver.OLines[l.DriverPin] = nil
	}
	if l.Reader != nil && l.ReaderPin < len(l.Reader.ILines) && l.Reader.ILines[l.ReaderPin] == l {
		l.Reader.ILines[l.ReaderPin] = nil
	}
	last := len(c.Lines) - 1
	if l.Index != last {
		moved := c.Lines[last]
		moved.Index = l.Index
		c.Lines[l.Index] = moved
	}
	c.Lines = c.Lines[:last]
	l.Index = -1
}

// RemoveNode removes n by swap-remove, updating the moved node's Index.
// All incident lines must already have been detached.
func (c *Circuit) RemoveNode(n *Node) error {
	if n.Circuit != c {
		return fmt.Errorf("node %q not in circuit", n.Name)
	}
	for _, l := range n.ILines {
		if l != nil {
			return fmt.Errorf("node %q still has input line %d attached", n.Name, l.Index)
		}
	}
	for _, l := range n.OLines {
		if l != nil {
			return fmt.Errorf("node %q still has output line %d attached", n.Name, l.Index)
		}
	}
	last := len(c.Nodes) - 1
	if n.Index != last {
		moved := c.Nodes[last]
		moved.Index = n.Index
		c.Nodes[n.Index] = moved
	}
	c.Nodes = c.Nodes[:last]
	if n.Kind.IsFork() {
		delete(c.Forks, n.Name)
	} else {
		delete(c.Cells, n.Name)
	}
	n.Circuit = nil
	n.Index = -1
	return nil
}

func (n *Node) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d:%s%q", n.Index, n.KindName, n.Name)
	for _, l := range n.ILines {
		if l == nil {
			sb.WriteString(" <None")
		} else {
			fmt.Fprintf(&sb, " <%d", l.Driver.Index)
		}
	}
	for _, l := range n.OLines {
		if l == nil {
			sb.WriteString(" >None")
		} else {
			fmt.Fprintf(&sb, " >%d", l.Reader.Index)
		}
	}
	return sb.String()
}

// Dump returns a one-node-per-line textual form of the whole graph,
// headed by the interface node indices.
func (c *Circuit) Dump() string {
	var sb strings.Builder
	ifc := make([]string, len(c.Interface))
	for i, n := range c.Interface {
		ifc[i] = fmt.Sprintf("%d", n.Index)
	}
	fmt.Fprintf(&sb, "%s(%s)\n", c.Name, strings.Join(ifc, ","))
	for _, n := range c.Nodes {
		sb.WriteString(n.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (c *Circuit) String() string {
	name := ""
	if c.Name != "" {
		name = fmt.Sprintf(" %q", c.Name)
	}
	return fmt.Sprintf("<Circuit%s with %d nodes, %d lines, %d ports>",
		name, len(c.Nodes), len(c.Lines), len(c.Interface))
}

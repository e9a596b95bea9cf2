// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package saed adapts SAED-style standard-cell netlists to the simulator's
primitive gate set: the canonical pin-name to pin-position mapping, and a
pre-pass that decomposes the AO/OA complex gates and wide NORs into chains
of 2-input primitives.
*/
package saed

import (
	"strings"

	"github.com/adept-eda/wavesim/circuit"
)

// PinIndex is the canonical SAED pin-position mapping: inputs A1/IN1 -> 0
// through A6/IN6 -> 5 with the scan pins SE -> 1 and SI -> 2 and control
// pins CLK -> 3, RSTB -> 4, SETB -> 5; outputs default to 0 with QN -> 1.
// On plain DFF cells CLK maps to 1 instead (they have no scan pins).
func PinIndex(kind, pin string) int {
	isDFF := strings.HasPrefix(kind, "DFF")
	isSDFF := strings.HasPrefix(kind, "SDFF")
	switch {
	case (isSDFF || isDFF) && pin == "QN":
		return 1
	case isDFF && pin == "CLK":
		return 1
	case pin == "A2" || pin == "IN2" || pin == "SE":
		return 1
	case pin == "A3" || pin == "IN3" || pin == "SI":
		return 2
	case pin == "A4" || pin == "IN4" || pin == "CLK":
		return 3 // CLK position on scan cells
	case pin == "A5" || pin == "IN5" || pin == "RSTB":
		return 4
	case pin == "A6" || pin == "IN6" || pin == "SETB":
		return 5
	}
	return 0
}

// AddAndConnect adds a cell and splices it onto existing lines: in1/in2
// become input pins 0/1 and out becomes output pin 0.  Nil lines leave
// the pin open for a later Connect.
func AddAndConnect(c *circuit.Circuit, name, kind string, in1, in2, out *circuit.Line) *circuit.Node {
	n, _ := c.AddCell(name, kind)
	if in1 != nil {
		n.ILines = append(n.ILines, nil)
		n.ILines[0] = in1
		in1.Reader = n
		in1.ReaderPin = 0
	}
	if in2 != nil {
		for len(n.ILines) < 2 {
			n.ILines = append(n.ILines, nil)
		}
		n.ILines[1] = in2
		in2.Reader = n
		in2.ReaderPin = 1
	}
	if out != nil {
		n.OLines = append(n.OLines, nil)
		n.OLines[0] = out
		out.Driver = n
		out.DriverPin = 0
	}
	return n
}

// detach clears a node's pin slices without touching the lines, so the
// lines can be respliced onto replacement nodes.
func detach(n *circuit.Node) {
	n.ILines = nil
	n.OLines = nil
}

// SplitComplexGates rewrites AO/OA/AOI-family cells and NOR3 into the
// 2-input primitive set.  The replacement cells reuse the original lines,
// so existing delay annotations on those lines stay attributed.
func SplitComplexGates(c *circuit.Circuit) {
	nodes := append([]*circuit.Node(nil), c.Nodes...)
	for _, n := range nodes {
		name := n.Name
		ins := append([]*circuit.Line(nil), n.ILines...)
		outs := append([]*circuit.Line(nil), n.OLines...)
		kind := n.KindName
		remove := func() {
			detach(n)
			c.RemoveNode(n)
		}
		switch {
		case strings.HasPrefix(kind, "AO21X"):
			remove()
			nAnd := AddAndConnect(c, name+"~and", "AND2", ins[0], ins[1], nil)
			nOr := AddAndConnect(c, name+"~or", "OR2", nil, ins[2], outs[0])
			c.Connect(nAnd, nOr)
		case strings.HasPrefix(kind, "OA21X"):
			remove()
			nOr := AddAndConnect(c, name+"~or", "OR2", ins[0], ins[1], nil)
			nAnd := AddAndConnect(c, name+"~and", "AND2", nil, ins[2], outs[0])
			c.Connect(nOr, nAnd)
		case strings.HasPrefix(kind, "OA22X"):
			remove()
			nOr0 := AddAndConnect(c, name+"~or0", "OR2", ins[0], ins[1], nil)
			nOr1 := AddAndConnect(c, name+"~or1", "OR2", ins[2], ins[3], nil)
			nAnd := AddAndConnect(c, name+"~and", "AND2", nil, nil, outs[0])
			c.Connect(nOr0, nAnd)
			c.Connect(nOr1, nAnd)
		case strings.HasPrefix(kind, "AO221X"):
			remove()
			nAnd0 := AddAndConnect(c, name+"~and0", "AND2", ins[0], ins[1], nil)
			nAnd1 := AddAndConnect(c, name+"~and1", "AND2", ins[2], ins[3], nil)
			nOr0 := AddAndConnect(c, name+"~or0", "OR2", nil, nil, nil)
			nOr1 := AddAndConnect(c, name+"~or1", "OR2", nil, ins[4], outs[0])
			c.Connect(nAnd0, nOr0)
			c.Connect(nAnd1, nOr0)
			c.Connect(nOr0, nOr1)
		case strings.HasPrefix(kind, "AOI221X"):
			remove()
			nAnd0 := AddAndConnect(c, name+"~and0", "AND2", ins[0], ins[1], nil)
			nAnd1 := AddAndConnect(c, name+"~and1", "AND2", ins[2], ins[3], nil)
			nOr := AddAndConnect(c, name+"~or", "OR2", nil, nil, nil)
			nNor := AddAndConnect(c, name+"~nor", "NOR2", nil, ins[4], outs[0])
			c.Connect(nAnd0, nOr)
			c.Connect(nAnd1, nOr)
			c.Connect(nOr, nNor)
		case strings.HasPrefix(kind, "OA221X"):
			remove()
			nOr0 := AddAndConnect(c, name+"~or0", "OR2", ins[0], ins[1], nil)
			nOr1 := AddAndConnect(c, name+"~or1", "OR2", ins[2], ins[3], nil)
			nAnd0 := AddAndConnect(c, name+"~and0", "AND2", nil, nil, nil)
			nAnd1 := AddAndConnect(c, name+"~and1", "AND2", nil, ins[4], outs[0])
			c.Connect(nOr0, nAnd0)
			c.Connect(nOr1, nAnd0)
			c.Connect(nAnd0, nAnd1)
		case strings.HasPrefix(kind, "AO22X"):
			remove()
			nAnd0 := AddAndConnect(c, name+"~and0", "AND2", ins[0], ins[1], nil)
			nAnd1 := AddAndConnect(c, name+"~and1", "AND2", ins[2], ins[3], nil)
			nOr := AddAndConnect(c, name+"~or", "OR2", nil, nil, outs[0])
			c.Connect(nAnd0, nOr)
			c.Connect(nAnd1, nOr)
		case strings.HasPrefix(kind, "AO222X"):
			remove()
			nAnd0 := AddAndConnect(c, name+"~and0", "AND2", ins[0], ins[1], nil)
			nAnd1 := AddAndConnect(c, name+"~and1", "AND2", ins[2], ins[3], nil)
			nAnd2 := AddAndConnect(c, name+"~and2", "AND2", ins[4], ins[5], nil)
			nOr0 := AddAndConnect(c, name+"~or0", "OR2", nil, nil, nil)
			nOr1 := AddAndConnect(c, name+"~or1", "OR2", nil, nil, outs[0])
			c.Connect(nAnd0, nOr0)
			c.Connect(nAnd1, nOr0)
			c.Connect(nAnd2, nOr1)
			c.Connect(nOr0, nOr1)
		case strings.HasPrefix(kind, "OA222X"):
			remove()
			nOr0 := AddAndConnect(c, name+"~or0", "OR2", ins[0], ins[1], nil)
			nOr1 := AddAndConnect(c, name+"~or1", "OR2", ins[2], ins[3], nil)
			nOr2 := AddAndConnect(c, name+"~or2", "OR2", ins[4], ins[5], nil)
			nAnd0 := AddAndConnect(c, name+"~and0", "AND2", nil, nil, nil)
			nAnd1 := AddAndConnect(c, name+"~and1", "AND2", nil, nil, outs[0])
			c.Connect(nOr0, nAnd0)
			c.Connect(nOr1, nAnd0)
			c.Connect(nOr2, nAnd1)
			c.Connect(nAnd0, nAnd1)
		case strings.HasPrefix(kind, "NOR3X"):
			remove()
			nOr := AddAndConnect(c, name+"~or", "OR2", ins[0], ins[1], nil)
			nNor := AddAndConnect(c, name+"~nor", "NOR2", nil, ins[2], outs[0])
			c.Connect(nOr, nNor)
		}
	}
}

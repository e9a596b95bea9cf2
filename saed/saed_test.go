// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package saed

import (
	"testing"

	"github.com/adept-eda/wavesim/circuit"
)

func TestPinIndex(t *testing.T) {
	cases := []struct {
		kind, pin string
		want      int
	}{
		{"NAND2X1", "A1", 0},
		{"NAND2X1", "A2", 1},
		{"AND3X1", "IN3", 2},
		{"SDFFARX1", "SE", 1},
		{"SDFFARX1", "SI", 2},
		{"SDFFARX1", "CLK", 3},
		{"SDFFARX1", "RSTB", 4},
		{"SDFFARX1", "SETB", 5},
		{"SDFFARX1", "Q", 0},
		{"SDFFARX1", "QN", 1},
		{"DFFX1", "QN", 1},
		{"DFFX1", "CLK", 1},
		{"INVX1", "IN", 0},
		{"INVX1", "Z", 0},
	}
	for _, cs := range cases {
		if got := PinIndex(cs.kind, cs.pin); got != cs.want {
			t.Errorf("PinIndex(%q, %q) = %d, want %d", cs.kind, cs.pin, got, cs.want)
		}
	}
}

func TestSplitAO21(t *testing.T) {
	c := circuit.NewCircuit("t")
	i0, _ := c.AddFork("i0")
	i1, _ := c.AddFork("i1")
	i2, _ := c.AddFork("i2")
	g, _ := c.AddCell("u1", "AO21X1")
	o, _ := c.AddFork("o")
	l0 := c.Connect(i0, g)
	l1 := c.Connect(i1, g)
	l2 := c.Connect(i2, g)
	lo := c.Connect(g, o)

	SplitComplexGates(c)

	if _, ok := c.Cells["u1"]; ok {
		t.Fatal("complex gate should be removed")
	}
	and := c.Cells["u1~and"]
	or := c.Cells["u1~or"]
	if and == nil || or == nil {
		t.Fatal("replacement gates missing")
	}
	// original lines respliced onto the replacements
	if l0.Reader != and || l0.ReaderPin != 0 {
		t.Error("i0 line should feed the AND pin 0")
	}
	if l1.Reader != and || l1.ReaderPin != 1 {
		t.Error("i1 line should feed the AND pin 1")
	}
	if l2.Reader != or || l2.ReaderPin != 1 {
		t.Error("i2 line should feed the OR pin 1")
	}
	if lo.Driver != or {
		t.Error("output line should be driven by the OR")
	}
	// new internal line AND -> OR
	if and.OLines[0] == nil || and.OLines[0].Reader != or || and.OLines[0].ReaderPin != 0 {
		t.Error("AND output should feed OR pin 0")
	}
}

func TestSplitNOR3(t *testing.T) {
	c := circuit.NewCircuit("t")
	var ins [3]*circuit.Line
	g, _ := c.AddCell("u2", "NOR3X0")
	for i := 0; i < 3; i++ {
		f := c.GetOrAddFork(string(rune('a' + i)))
		ins[i] = c.Connect(f, g)
	}
	o, _ := c.AddFork("o")
	lo := c.Connect(g, o)

	SplitComplexGates(c)

	or := c.Cells["u2~or"]
	nor := c.Cells["u2~nor"]
	if or == nil || nor == nil {
		t.Fatal("replacement gates missing")
	}
	if ins[0].Reader != or || ins[1].Reader != or {
		t.Error("first two inputs should feed the OR")
	}
	if ins[2].Reader != nor || ins[2].ReaderPin != 1 {
		t.Error("third input should feed the NOR pin 1")
	}
	if lo.Driver != nor {
		t.Error("output should be driven by the NOR")
	}
	// only 2-input primitives remain
	for _, n := range c.Nodes {
		if n.Kind == circuit.Unknown {
			t.Errorf("unresolved kind %q survives split", n.KindName)
		}
		if len(n.ILines) > 2 && !n.Kind.IsDFF() {
			t.Errorf("node %q still has %d inputs", n.Name, len(n.ILines))
		}
	}
}

// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package sdf materializes SDF-derived delay annotations as the dense
per-line delay table consumed by the waveform simulator.

Parsing of the SDF text itself is an external concern: this package takes
already-decoded records (IOPATH entries per cell instance, INTERCONNECT
entries between instance pins) and attributes their delays to circuit
lines.  The resulting table is indexed

	times[line][k][v]

with k = 0 for transport delays and k = 1 for pulse-rejection thresholds,
and v the rise (0) / fall (1) entry as written in the SDF record.  IOPATH
values populate both k planes; interconnect values populate transport
only, leaving interconnect pulse rejection at zero.
*/
package sdf

import (
	"fmt"
	"log"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/adept-eda/wavesim/circuit"
)

// Triple is an SDF (min:typ:max) value triple.  The zero value stands for
// an empty triple in the source file.
type Triple [3]float32

// IOPath is one (IOPATH ipin opin rise fall) record of a cell.  Edge
// qualified input pins keep their source form, e.g. "(posedge CLK)".
type IOPath struct {
	IPin string
	OPin string
	Rise Triple
	Fall Triple
}

// Interconnect is one (INTERCONNECT src dst rise fall) record.  Endpoints
// are instance pin paths like "u42/Z"; a bare identifier defaults to pin
// Z on the source side and IN on the destination side.
type Interconnect struct {
	Orig string
	Dest string
	Rise Triple
	Fall Triple
}

// DelayFile holds the decoded records of one SDF file.
type DelayFile struct {
	Name          string
	Cells         map[string][]IOPath
	Interconnects []Interconnect
}

// PinIndexFunc maps (cell kind, pin name) to the dense pin position used
// by the circuit.  The saed package provides the canonical mapping.
type PinIndexFunc func(kind, pin string) int

// LineTimesParams selects which annotation values are applied.
type LineTimesParams struct {

	// Dataset selects the triple entries to use: one index takes that
	// entry (0=min 1=typ 2=max), several take their arithmetic mean.
	Dataset []int

	// Interconnect applies INTERCONNECT records to fork output lines.
	Interconnect bool

	// FFDelays applies (posedge CLK -> Q/QN) IOPATHs of SDFF cells to
	// their output lines.
	FFDelays bool
}

// Defaults selects the typical dataset with all record classes applied.
func (lp *LineTimesParams) Defaults() {
	lp.Dataset = []int{1}
	lp.Interconnect = true
	lp.FFDelays = true
}

func (lp *LineTimesParams) sel(tr Triple) float32 {
	if len(lp.Dataset) == 0 {
		return tr[1]
	}
	var s float32
	for _, d := range lp.Dataset {
		s += tr[d]
	}
	return s / float32(len(lp.Dataset))
}

func empty(tr Triple) bool {
	return tr[0] == 0 && tr[1] == 0 && tr[2] == 0
}

// findCell looks an SDF instance name up in the circuit, retrying with
// the usual netlist name manglings (escape backslashes stripped, bus
// brackets flattened to underscores).
func findCell(c *circuit.Circuit, name string) *circuit.Node {
	if n, ok := c.Cells[name]; ok {
		return n
	}
	name = strings.ReplaceAll(name, `\`, "")
	if n, ok := c.Cells[name]; ok {
		return n
	}
	name = strings.ReplaceAll(strings.ReplaceAll(name, "[", "_"), "]", "_")
	return c.Cells[name]
}

// unwrapEdge strips a (posedge A1) / (negedge A2) qualifier down to the
// bare pin name, for the pins where XOR inputs are edge-qualified.
func unwrapEdge(pin string) string {
	for _, p := range []string{"A1", "A2"} {
		pin = strings.ReplaceAll(pin, "(posedge "+p+")", p)
		pin = strings.ReplaceAll(pin, "(negedge "+p+")", p)
	}
	return pin
}

// splitPinPath splits "inst/pin" at the last slash; a bare name gets the
// given default pin.
func splitPinPath(path, defPin string) (string, string) {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, defPin
}

// LineTimes builds the dense lines x {transport,pulse} x {rise,fall}
// delay table for the given circuit.  Records naming unknown cells are
// logged and skipped; a nil params takes the defaults.
func (df *DelayFile) LineTimes(c *circuit.Circuit, pinIndex PinIndexFunc, params *LineTimesParams) ([][2][2]float32, error) {
	if params == nil {
		params = &LineTimesParams{}
		params.Defaults()
	}
	times := make([][2][2]float32, len(c.Lines))

	addDelays := func(l *circuit.Line, rise, fall float32) {
		if l == nil {
			return
		}
		times[l.Index][0][0] += rise
		times[l.Index][1][0] += rise
		times[l.Index][0][1] += fall
		times[l.Index][1][1] += fall
	}

	names := make([]string, 0, len(df.Cells))
	for cn := range df.Cells {
		names = append(names, cn)
	}
	slices.Sort(names)

	for _, cn := range names {
		for _, iop := range df.Cells[cn] {
			if empty(iop.Rise) && empty(iop.Fall) {
				continue
			}
			cell := findCell(c, cn)
			if cell == nil {
				log.Printf("cell from SDF not found in circuit: %s", cn)
				continue
			}
			rise := params.sel(iop.Rise)
			fall := params.sel(iop.Fall)
			if cell.Kind == circuit.SDFF {
				if !strings.HasPrefix(iop.IPin, "(posedge CLK") {
					continue
				}
				opin := pinIndex(cell.KindName, iop.OPin)
				if params.FFDelays && opin < len(cell.OLines) {
					addDelays(cell.OLines[opin], rise, fall)
				}
				continue
			}
			ipin := pinIndex(cell.KindName, iop.IPin)
			takeAvg := false
			if cell.Kind == circuit.Xor || cell.Kind == circuit.Xnor {
				ipin = pinIndex(cell.KindName, unwrapEdge(iop.IPin))
				takeAvg = annotated(times, cell, ipin)
			}
			if ipin >= len(cell.ILines) {
				log.Printf("pin %s/%s from SDF not present in circuit", cn, iop.IPin)
				continue
			}
			addDelays(cell.ILines[ipin], rise, fall)
			if takeAvg {
				l := cell.ILines[ipin]
				for k := 0; k < 2; k++ {
					for v := 0; v < 2; v++ {
						times[l.Index][k][v] /= 2
					}
				}
			}
		}
	}

	if !params.Interconnect || len(df.Interconnects) == 0 {
		return times, nil
	}

	for _, ic := range df.Interconnects {
		if empty(ic.Rise) && empty(ic.Fall) {
			continue
		}
		cn1, pn1 := splitPinPath(ic.Orig, "Z")
		cn2, pn2 := splitPinPath(ic.Dest, "IN")
		c1 := findCell(c, cn1)
		if c1 == nil {
			log.Printf("cell from SDF not found in circuit: %s", cn1)
			continue
		}
		c2 := findCell(c, cn2)
		if c2 == nil {
			log.Printf("cell from SDF not found in circuit: %s", cn2)
			continue
		}
		p1 := pinIndex(c1.KindName, pn1)
		p2 := pinIndex(c2.KindName, pn2)
		if p1 >= len(c1.OLines) || c1.OLines[p1] == nil || p2 >= len(c2.ILines) || c2.ILines[p2] == nil {
			log.Printf("interconnect %s -> %s: pin not connected", ic.Orig, ic.Dest)
			continue
		}
		outLine := c1.OLines[p1]
		inLine := c2.ILines[p2]
		// multi-fanout must be materialized as a fork between the two cells
		if outLine.Reader != inLine.Driver {
			return nil, fmt.Errorf("interconnect %s -> %s does not meet at a common fork", ic.Orig, ic.Dest)
		}
		if outLine.ReaderPin != 0 {
			return nil, fmt.Errorf("interconnect %s -> %s: fork input is not pin 0", ic.Orig, ic.Dest)
		}
		fork := outLine.Reader
		line := fork.OLines[inLine.DriverPin]
		times[line.Index][0][0] += params.sel(ic.Rise)
		times[line.Index][0][1] += params.sel(ic.Fall)
	}
	return times, nil
}

// annotated reports whether the addressed input line already carries any
// delay, which is what triggers the XOR/XNOR averaging rule.
func annotated(times [][2][2]float32, cell *circuit.Node, ipin int) bool {
	if ipin >= len(cell.ILines) || cell.ILines[ipin] == nil {
		return false
	}
	lt := times[cell.ILines[ipin].Index]
	return lt[0][0]+lt[0][1]+lt[1][0]+lt[1][1] > 0
}

func (df *DelayFile) String() string {
	var sb strings.Builder
	for cn, paths := range df.Cells {
		fmt.Fprintf(&sb, "%s: %v\n", cn, paths)
	}
	for _, ic := range df.Interconnects {
		fmt.Fprintf(&sb, "%v\n", ic)
	}
	return sb.String()
}

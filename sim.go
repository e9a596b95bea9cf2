// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wavesim

import (
	"errors"
	"fmt"
	"log"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/adept-eda/wavesim/bittools"
	"github.com/adept-eda/wavesim/circuit"
)

var (
	// ErrMalformedCircuit is returned by the compiler for unknown cell
	// kinds or a multi-output node that is not a fork.
	ErrMalformedCircuit = errors.New("malformed circuit")

	// ErrShapeMismatch is returned by Assign and Capture when the data
	// dimensions do not match the interface.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Op is one compiled gate evaluation.  LUT is the 4-bit truth table over
// the (b,a) input parity: bit (b*2 + a) is the output value, so the low
// bit is the output with both inputs at 0.  ZMem/AMem/BMem are waveform
// store rows, ZLine/ALine/BLine index the delay table.  An unused second
// input points at the immutable constant-0 row with line index 0.
type Op struct {
	LUT   int32
	ZMem  int32
	AMem  int32
	BMem  int32
	ZLine int32
	ALine int32
	BLine int32

	pad int32
}

// Truth tables per gate kind, (b,a) LSB-first.
const (
	lutAnd  = 0b1000
	lutNand = 0b0111
	lutOr   = 0b1110
	lutNor  = 0b0001
	lutXor  = 0b0110
	lutXnor = 0b1001
	lutInv  = 0b0101
	lutBuf  = 0b1010
)

// WaveSim propagates event waveforms through a compiled circuit.  The
// waveform store is one flat float32 array of NRows x SDim, row-major:
// State[row*SDim + s] is the value of row for stimulus column s, so one
// op's rows are contiguous slices across all stimuli.
//
// A simulator is never reset: Assign rewrites the input slots and the
// kernel rewrites every internal slot it computes, so reassigning inputs
// and propagating again is a fresh simulation.
type WaveSim struct {

	// Circuit is the compiled netlist; it is not mutated.
	Circuit *circuit.Circuit

	// LineTimes is the dense per-line delay table,
	// [line][0=transport 1=pulse-reject][rise=0 fall=1].
	LineTimes [][2][2]float32

	// SDim is the number of parallel stimulus columns.
	SDim int

	// NThreads bounds the worker fan-out within a level; <= 0 takes
	// GOMAXPROCS.  1 forces the serial path.
	NThreads int

	// Overflows counts events dropped because a slot ran out of
	// capacity, accumulated over all Propagate calls.
	Overflows int64

	// Interface is the PPI/PPO boundary: the circuit's interface nodes
	// followed by all flip-flops in node order.
	Interface []*circuit.Node

	// LMap maps line index to state row; TDim holds each line's slot
	// capacity.
	LMap []int32
	TDim []int32

	// TMap / CMap map interface positions to input-slot rows (PPI) and
	// to the row of the node's first input line (PPO); -1 if absent.
	TMap []int32
	CMap []int32

	// Ops in topological order, grouped into levels of independent ops:
	// level l spans Ops[LevelStarts[l]:LevelStops[l]].
	Ops         []Op
	LevelStarts []int32
	LevelStops  []int32

	// State is the waveform store.
	State []float32
	NRows int

	zero         int32 // constant-0 scratch row
	tmp          int32 // sink row for outputless gates
	inputsOffset int32
}

// NewWaveSim compiles the circuit with a uniform slot capacity of tdim
// cells per line: the capacity cell and the terminator included, so a slot
// holds at most tdim-2 events.
func NewWaveSim(c *circuit.Circuit, lineTimes [][2][2]float32, sdim, tdim int) (*WaveSim, error) {
	caps := make([]int32, len(c.Lines))
	for i := range caps {
		caps[i] = int32(tdim)
	}
	return NewWaveSimCaps(c, lineTimes, sdim, caps)
}

// NewWaveSimCaps compiles the circuit with per-line slot capacities.
func NewWaveSimCaps(c *circuit.Circuit, lineTimes [][2][2]float32, sdim int, caps []int32) (*WaveSim, error) {
	if len(caps) != len(c.Lines) {
		return nil, fmt.Errorf("%w: %d capacities for %d lines", ErrShapeMismatch, len(caps), len(c.Lines))
	}
	ws := &WaveSim{
		Circuit:   c,
		LineTimes: append([][2][2]float32(nil), lineTimes...),
		SDim:      sdim,
		TDim:      append([]int32(nil), caps...),
	}

	// map line indices to state rows
	ws.LMap = make([]int32, len(c.Lines))
	lsize := int32(0)
	for li, wcap := range ws.TDim {
		ws.LMap[li] = lsize
		lsize += wcap
	}

	// interface entries, then the fixed scratch and input-slot rows
	ws.Interface = append(ws.Interface, c.Interface...)
	for _, n := range c.Nodes {
		if n.Kind.IsDFF() {
			ws.Interface = append(ws.Interface, n)
		}
	}
	ifaceIdx := make(map[*circuit.Node]int, len(ws.Interface))
	for i, n := range ws.Interface {
		ifaceIdx[n] = i
	}
	ws.zero = lsize
	ws.tmp = ws.zero + interfaceTDim
	ws.inputsOffset = ws.tmp + interfaceTDim
	ws.NRows = int(ws.inputsOffset) + len(ws.Interface)*interfaceTDim

	// every slot starts out terminated: all cells TMax, then capacities
	ws.State = make([]float32, ws.NRows*sdim)
	for i := range ws.State {
		ws.State[i] = TMax
	}
	for li := range ws.TDim {
		ws.fillRow(ws.LMap[li], float32(ws.TDim[li]))
	}
	ws.fillRow(ws.zero, interfaceTDim)
	ws.fillRow(ws.tmp, interfaceTDim)
	for i := range ws.Interface {
		ws.fillRow(ws.inputsOffset+int32(i)*interfaceTDim, interfaceTDim)
	}

	// PPI and PPO row maps
	ws.TMap = make([]int32, len(ws.Interface))
	ws.CMap = make([]int32, len(ws.Interface))
	for i, n := range ws.Interface {
		ws.TMap[i] = -1
		if len(n.OLines) > 0 {
			ws.TMap[i] = ws.inputsOffset + int32(i)*interfaceTDim
		}
		ws.CMap[i] = -1
		if len(n.ILines) > 0 && n.ILines[0] != nil {
			ws.CMap[i] = ws.LMap[n.ILines[0].Index]
		}
	}

	if err := ws.compile(ifaceIdx); err != nil {
		return nil, err
	}
	ws.levelize()
	return ws, nil
}

// fillRow writes a slot's capacity cell across all stimulus columns.
func (ws *WaveSim) fillRow(row int32, wcap float32) {
	base := int(row) * ws.SDim
	for s := 0; s < ws.SDim; s++ {
		ws.State[base+s] = wcap
	}
}

// compile translates the graph into the linear op list, in topological
// order.  Interface nodes copy (or for the QN pin, invert) their input
// slot onto each line they drive; forks copy their single input onto
// each output line; gates become one op under their truth table.
func (ws *WaveSim) compile(ifaceIdx map[*circuit.Node]int) error {
	emit := func(lut int32, zMem, aMem, bMem int32, zLine, aLine, bLine int32) {
		ws.Ops = append(ws.Ops, Op{
			LUT: lut, ZMem: zMem, AMem: aMem, BMem: bMem,
			ZLine: zLine, ALine: aLine, BLine: bLine,
		})
	}

	for _, n := range ws.Circuit.TopologicalOrder() {
		if ii, ok := ifaceIdx[n]; ok {
			inp := ws.inputsOffset + int32(ii)*interfaceTDim
			if len(n.OLines) > 0 && n.OLines[0] != nil {
				o0 := n.OLines[0]
				emit(lutBuf, ws.LMap[o0.Index], inp, ws.zero, int32(o0.Index), 0, 0)
			}
			if n.Kind.IsDFF() {
				// pin 1 is QN
				if len(n.OLines) > 1 && n.OLines[1] != nil {
					o1 := n.OLines[1]
					emit(lutInv, ws.LMap[o1.Index], inp, ws.zero, int32(o1.Index), 0, 0)
				}
			} else if len(n.OLines) > 1 {
				for _, ol := range n.OLines[1:] {
					if ol != nil {
						emit(lutBuf, ws.LMap[ol.Index], inp, ws.zero, int32(ol.Index), 0, 0)
					}
				}
			}
			continue
		}

		o0Mem := ws.tmp
		o0Idx := int32(0)
		nOuts := 0
		for _, ol := range n.OLines {
			if ol != nil {
				nOuts++
			}
		}
		if nOuts == 0 {
			log.Printf("no outputs for %v", n)
		} else {
			o0 := n.OLines[0]
			o0Mem = ws.LMap[o0.Index]
			o0Idx = int32(o0.Index)
		}
		if nOuts > 1 && !n.Kind.IsFork() {
			return fmt.Errorf("%w: non-fork node %q has %d outputs", ErrMalformedCircuit, n.Name, nOuts)
		}

		i0Mem, i0Idx := ws.zero, int32(0)
		if len(n.ILines) > 0 && n.ILines[0] != nil {
			i0Mem = ws.LMap[n.ILines[0].Index]
			i0Idx = int32(n.ILines[0].Index)
		}
		i1Mem, i1Idx := ws.zero, int32(0)
		if len(n.ILines) > 1 && n.ILines[1] != nil {
			i1Mem = ws.LMap[n.ILines[1].Index]
			i1Idx = int32(n.ILines[1].Index)
		}

		switch n.Kind {
		case circuit.Fork:
			for _, ol := range n.OLines {
				if ol != nil {
					emit(lutBuf, ws.LMap[ol.Index], i0Mem, ws.zero, int32(ol.Index), i0Idx, i1Idx)
				}
			}
		case circuit.Nand:
			emit(lutNand, o0Mem, i0Mem, i1Mem, o0Idx, i0Idx, i1Idx)
		case circuit.Nor:
			emit(lutNor, o0Mem, i0Mem, i1Mem, o0Idx, i0Idx, i1Idx)
		case circuit.And:
			emit(lutAnd, o0Mem, i0Mem, i1Mem, o0Idx, i0Idx, i1Idx)
		case circuit.Or:
			emit(lutOr, o0Mem, i0Mem, i1Mem, o0Idx, i0Idx, i1Idx)
		case circuit.Xor:
			emit(lutXor, o0Mem, i0Mem, i1Mem, o0Idx, i0Idx, i1Idx)
		case circuit.Xnor:
			emit(lutXnor, o0Mem, i0Mem, i1Mem, o0Idx, i0Idx, i1Idx)
		case circuit.Not:
			emit(lutInv, o0Mem, i0Mem, ws.zero, o0Idx, i0Idx, i1Idx)
		case circuit.Buf:
			emit(lutBuf, o0Mem, i0Mem, ws.zero, o0Idx, i0Idx, i1Idx)
		case circuit.TieH:
			// inverting the constant-0 row emits the initial TMin event
			emit(lutInv, o0Mem, ws.zero, ws.zero, o0Idx, i0Idx, i1Idx)
		case circuit.TieL:
			emit(lutBuf, o0Mem, ws.zero, ws.zero, o0Idx, i0Idx, i1Idx)
		default:
			return fmt.Errorf("%w: unknown gate kind %q of %q", ErrMalformedCircuit, n.KindName, n.Name)
		}
	}
	return nil
}

// levelize groups the topologically ordered ops into levels: a new level
// starts whenever an op reads a row written at the current level.  Within
// a level all ops are independent and write pairwise distinct rows.
func (ws *WaveSim) levelize() {
	levels := make([]int32, ws.NRows)
	starts := []int32{0}
	current := int32(1)
	for i := range ws.Ops {
		op := &ws.Ops[i]
		if levels[op.AMem] >= current || levels[op.BMem] >= current {
			current++
			starts = append(starts, int32(i))
		}
		levels[op.ZMem] = current
	}
	ws.LevelStarts = starts
	ws.LevelStops = append(append([]int32(nil), starts[1:]...), int32(len(ws.Ops)))
}

// Assign lowers up to SDim vectors, starting at offset, into the input
// slots: an initial 1 becomes a TMin event, differing initial/final
// values a transition at time, and the toggle flag a post-capture toggle
// at time when initial and final agree.
func (ws *WaveSim) Assign(vecs *Vectors, time float32, offset int) error {
	if len(vecs.Bits) != len(ws.Interface) {
		return fmt.Errorf("%w: %d vector rows for %d interface entries",
			ErrShapeMismatch, len(vecs.Bits), len(ws.Interface))
	}
	if vecs.Planes() < 2 {
		return fmt.Errorf("%w: need at least 2 bit planes, have %d", ErrShapeMismatch, vecs.Planes())
	}
	nvectors := min(vecs.NVectors-offset, ws.SDim)
	for i := range ws.Interface {
		row := ws.TMap[i]
		if row < 0 {
			continue
		}
		planes := vecs.Bits[i]
		for p := 0; p < nvectors; p++ {
			vector := p + offset
			a0 := bittools.BitIn(planes[0], vector) != 0
			a1 := bittools.BitIn(planes[1], vector) != 0
			a2 := len(planes) > 2 && bittools.BitIn(planes[2], vector) != 0
			base := int(row) * ws.SDim
			toggle := 1
			if a0 {
				ws.State[base+ws.SDim+p] = TMin
				toggle++
			}
			if a0 != a1 || a2 {
				ws.State[base+toggle*ws.SDim+p] = time
				toggle++
			}
			ws.State[base+toggle*ws.SDim+p] = TMax
		}
	}
	return nil
}

// Propagate evaluates all levels in order for the first sdim stimulus
// columns (<= 0 or too large takes all of them).  Levels are strictly
// sequential; within a level the op range is fanned out over workers,
// which is safe because ops of one level write disjoint rows.
func (ws *WaveSim) Propagate(sdim int) {
	if sdim <= 0 || sdim > ws.SDim {
		sdim = ws.SDim
	}
	nt := ws.NThreads
	if nt <= 0 {
		nt = runtime.GOMAXPROCS(0)
	}
	for li := range ws.LevelStarts {
		start, stop := ws.LevelStarts[li], ws.LevelStops[li]
		n := int(stop - start)
		if n == 0 {
			continue
		}
		if nt == 1 || n < 2*nt {
			ws.Overflows += ws.levelEval(start, stop, 0, sdim)
			continue
		}
		chunk := int32((n + nt - 1) / nt)
		tallies := make([]int64, nt)
		var g errgroup.Group
		for w := 0; w < nt; w++ {
			w := w
			b0 := start + int32(w)*chunk
			b1 := min(b0+chunk, stop)
			if b0 >= b1 {
				continue
			}
			g.Go(func() error {
				tallies[w] = ws.levelEval(b0, b1, 0, sdim)
				return nil
			})
		}
		g.Wait()
		for _, tv := range tallies {
			ws.Overflows += tv
		}
	}
}

// Capture samples every PPO at the given times and fills
// out[iface][vector][time] with hard logic values (sigma = 0) or
// Gaussian-smoothed expectations (sigma > 0).
func (ws *WaveSim) Capture(out [][][]float32, times []float32, offset int, sigma float32) error {
	if len(out) != len(ws.Interface) {
		return fmt.Errorf("%w: %d capture rows for %d interface entries",
			ErrShapeMismatch, len(out), len(ws.Interface))
	}
	for i, n := range ws.Interface {
		if len(n.ILines) == 0 || n.ILines[0] == nil {
			continue
		}
		nvectors := min(len(out[i])-offset, ws.SDim)
		line := n.ILines[0].Index
		for p := 0; p < nvectors; p++ {
			vs := ws.Vals(line, p, times, sigma)
			if len(out[i][p+offset]) != len(times) {
				return fmt.Errorf("%w: capture row holds %d sample cells for %d times",
					ErrShapeMismatch, len(out[i][p+offset]), len(times))
			}
			copy(out[i][p+offset], vs)
		}
	}
	return nil
}

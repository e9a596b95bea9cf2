// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wavesim

import (
	"math/rand"
	"testing"

	"github.com/adept-eda/wavesim/circuit"
)

// randCircuit builds a small two-level combinational block:
//
//	i0,i1 -> AND g1;  i2,i3 -> XOR g2;  g1,g2 -> NOR g3 -> out
func randCircuit(t *testing.T) *circuit.Circuit {
	t.Helper()
	c := circuit.NewCircuit("rnd")
	var ins []*circuit.Node
	for i := 0; i < 4; i++ {
		f := c.GetOrAddFork(string(rune('a' + i)))
		ins = append(ins, f)
	}
	g1, _ := c.AddCell("g1", "AND2X1")
	g2, _ := c.AddCell("g2", "XOR2X1")
	g3, _ := c.AddCell("g3", "NOR2X1")
	out, _ := c.AddFork("out")
	c.Connect(ins[0], g1)
	c.Connect(ins[1], g1)
	c.Connect(ins[2], g2)
	c.Connect(ins[3], g2)
	c.Connect(g1, g3)
	c.Connect(g2, g3)
	c.Connect(g3, out)
	c.Interface = append(append([]*circuit.Node(nil), ins...), out)
	return c
}

func randAssign(t *testing.T, ws *WaveSim, rng *rand.Rand, time float32) {
	t.Helper()
	vecs := NewVectors(len(ws.Interface), ws.SDim, 3)
	for i := range ws.Interface {
		for p := 0; p < ws.SDim; p++ {
			vecs.Set(i, p, rng.Intn(2) == 1, rng.Intn(2) == 1, rng.Intn(2) == 1)
		}
	}
	if err := ws.Assign(vecs, time, 0); err != nil {
		t.Fatal(err)
	}
}

// checkSlotInvariants verifies strict ordering and termination of every
// line slot.
func checkSlotInvariants(t *testing.T, ws *WaveSim) {
	t.Helper()
	for li := range ws.LMap {
		for s := 0; s < ws.SDim; s++ {
			wave := ws.Wave(li, s)
			prev := float32(-1)
			terminated := false
			for i, tv := range wave {
				if tv >= TMax {
					terminated = true
					break
				}
				if i > 0 && tv <= prev {
					t.Fatalf("line %d col %d: events not strictly increasing: %v", li, s, wave)
				}
				prev = tv
			}
			if !terminated {
				t.Fatalf("line %d col %d: no terminator within capacity: %v", li, s, wave)
			}
		}
	}
}

func TestLevelsWriteDisjointRows(t *testing.T) {
	c := randCircuit(t)
	ws, err := NewWaveSim(c, make([][2][2]float32, len(c.Lines)), 2, 16)
	if err != nil {
		t.Fatal(err)
	}
	for li := range ws.LevelStarts {
		writes := map[int32]bool{}
		for oi := ws.LevelStarts[li]; oi < ws.LevelStops[li]; oi++ {
			op := &ws.Ops[oi]
			if writes[op.ZMem] {
				t.Fatalf("level %d: row %d written twice", li, op.ZMem)
			}
			writes[op.ZMem] = true
		}
		// no op may read a row written in its own level
		for oi := ws.LevelStarts[li]; oi < ws.LevelStops[li]; oi++ {
			op := &ws.Ops[oi]
			if writes[op.AMem] || writes[op.BMem] {
				t.Fatalf("level %d: op %d reads a row written in the same level", li, oi)
			}
		}
	}
}

// TestLutConsistency checks, for zero delays and ample capacity, that
// every op's sampled output equals its truth table applied to the
// sampled inputs, and that every committed output event coincides with
// some input event.
func TestLutConsistency(t *testing.T) {
	c := randCircuit(t)
	times := make([][2][2]float32, len(c.Lines))
	ws, err := NewWaveSim(c, times, 8, 32)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(42))
	samples := []float32{-0.5, 0.5, 1.5, 10}
	for round := 0; round < 10; round++ {
		randAssign(t, ws, rng, 1.0)
		ws.Propagate(0)
		checkSlotInvariants(t, ws)
		for oi := range ws.Ops {
			op := &ws.Ops[oi]
			for s := 0; s < ws.SDim; s++ {
				va := ws.vals(op.AMem, s, samples, 0)
				vb := ws.vals(op.BMem, s, samples, 0)
				vz := ws.vals(op.ZMem, s, samples, 0)
				for i := range samples {
					want := float32((op.LUT >> (int32(vb[i])*2 + int32(va[i]))) & 1)
					if vz[i] != want {
						t.Fatalf("op %d col %d t=%g: output %g, lut gives %g",
							oi, s, samples[i], vz[i], want)
					}
				}
				// zero delays: output toggles coincide with input events
				inEvents := map[float32]bool{TMin: true}
				for _, tv := range append(ws.waveSlice(op.AMem, s), ws.waveSlice(op.BMem, s)...) {
					if tv < TMax {
						inEvents[tv] = true
					}
				}
				for _, tv := range ws.waveSlice(op.ZMem, s) {
					if tv >= TMax {
						break
					}
					if !inEvents[tv] {
						t.Fatalf("op %d col %d: output event %g matches no input event", oi, s, tv)
					}
				}
			}
		}
	}
}

func TestPropagateIdempotent(t *testing.T) {
	c := randCircuit(t)
	ws, err := NewWaveSim(c, make([][2][2]float32, len(c.Lines)), 4, 16)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(7))
	randAssign(t, ws, rng, 1.0)
	ws.Propagate(0)
	snap := append([]float32(nil), ws.State...)
	ws.Propagate(0)
	for i := range snap {
		if snap[i] != ws.State[i] {
			t.Fatalf("state cell %d changed on re-propagate: %g -> %g", i, snap[i], ws.State[i])
		}
	}
}

func TestSteadyState(t *testing.T) {
	c := randCircuit(t)
	ws, err := NewWaveSim(c, make([][2][2]float32, len(c.Lines)), 2, 16)
	if err != nil {
		t.Fatal(err)
	}
	vecs := NewVectors(len(ws.Interface), 2, 3)
	for i := range ws.Interface {
		vecs.Set(i, 0, true, true, false) // all stable 1
		vecs.Set(i, 1, false, false, false)
	}
	if err := ws.Assign(vecs, 1.0, 0); err != nil {
		t.Fatal(err)
	}
	ws.Propagate(0)
	for li := range ws.LMap {
		for s := 0; s < 2; s++ {
			if tog := ws.Toggles(li, s); tog != 0 {
				t.Errorf("line %d col %d: %d finite toggles for stable inputs", li, s, tog)
			}
			wave := ws.Wave(li, s)
			if wave[0] != TMin && wave[0] != TMax {
				t.Errorf("line %d col %d: wave starts with %g", li, s, wave[0])
			}
			if wave[0] == TMin && wave[1] != TMax {
				t.Errorf("line %d col %d: more than one event: %v", li, s, wave)
			}
		}
	}
}

func TestParallelPropagateMatchesSerial(t *testing.T) {
	c := randCircuit(t)
	times := make([][2][2]float32, len(c.Lines))
	for li := range times {
		times[li][0][0] = float32(li) * 0.01
		times[li][0][1] = float32(li) * 0.015
	}
	mk := func(nt int) []float32 {
		ws, err := NewWaveSim(c, times, 8, 16)
		if err != nil {
			t.Fatal(err)
		}
		ws.NThreads = nt
		rng := rand.New(rand.NewSource(3))
		randAssign(t, ws, rng, 1.0)
		ws.Propagate(0)
		return ws.State
	}
	serial := mk(1)
	parallel := mk(4)
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("state cell %d differs between serial and parallel runs", i)
		}
	}
}

// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package wavesim is a gate-level waveform simulator for timing and
switching-activity analysis.  Given a netlist graph (package circuit) and
per-line transport delays and pulse-rejection thresholds (package sdf),
it propagates 4-valued input stimuli through the network as event
waveforms -- ordered sequences of toggle times -- and samples the outputs
either as hard logic values or as Gaussian-smoothed expected values.

The compiler lowers the graph into a linear op list grouped into levels
of mutually independent ops; the propagation kernel then sweeps the
levels in order, evaluating ops x stimulus-columns with no event queue
and no scheduler.  The same kernel runs on the CPU (optionally fanned out
over worker goroutines within a level) or, via GPUSim, as a Vulkan
compute shader dispatched once per level.

Usage:

	ws, err := wavesim.NewWaveSim(circ, lineTimes, sdim, tdim)
	ws.Assign(vectors, 0, 0)
	ws.Propagate(0)
	ws.Capture(out, times, 0, 0)

Netlist, SDF and VCD text parsing are external concerns: circuit and sdf
consume already-decoded records.
*/
package wavesim

//go:generate gosl -out shaders kernel.go

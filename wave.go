// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wavesim

import "goki.dev/mat32/v2"

// waveSlice copies the event sequence of one slot (capacity cell
// excluded, terminator included) out of the store.
func (ws *WaveSim) waveSlice(row int32, s int) []float32 {
	if row < 0 {
		return nil
	}
	base := int(row) * ws.SDim
	wcap := int(ws.State[base+s])
	out := make([]float32, 0, wcap-1)
	for i := 1; i < wcap; i++ {
		out = append(out, ws.State[base+i*ws.SDim+s])
	}
	return out
}

// Wave returns the waveform of a line for stimulus column s.
func (ws *WaveSim) Wave(line, s int) []float32 {
	return ws.waveSlice(ws.LMap[line], s)
}

// WavePPI returns the input waveform assigned to interface entry i.
func (ws *WaveSim) WavePPI(i, s int) []float32 {
	return ws.waveSlice(ws.TMap[i], s)
}

// WavePPO returns the waveform captured at interface entry o.
func (ws *WaveSim) WavePPO(o, s int) []float32 {
	return ws.waveSlice(ws.CMap[o], s)
}

// EarliestArrival returns the earliest finite event time on a line, or
// TMax if the line never toggles.
func (ws *WaveSim) EarliestArrival(line, s int) float32 {
	eat := TMax
	for _, t := range ws.Wave(line, s) {
		if t >= TMax {
			break
		}
		if t <= TMin {
			continue
		}
		eat = mat32.Min(eat, t)
	}
	return eat
}

// LatestPPO returns the latest finite event time at interface entry o,
// or TMin if it never toggles.
func (ws *WaveSim) LatestPPO(o, s int) float32 {
	lst := TMin
	for _, t := range ws.waveSlice(ws.CMap[o], s) {
		if t >= TMax {
			break
		}
		if t <= TMin {
			continue
		}
		lst = mat32.Max(lst, t)
	}
	return lst
}

// Toggles counts the finite events on a line.
func (ws *WaveSim) Toggles(line, s int) int {
	tog := 0
	for _, t := range ws.Wave(line, s) {
		if t >= TMax {
			break
		}
		if t <= TMin {
			continue
		}
		tog++
	}
	return tog
}

// vals samples one slot at the given times.  With sigma = 0 the result
// is the hard 0/1 parity of events before each time; with sigma > 0 it
// is the expected value of the sampled logic under independent Gaussian
// jitter of each event: a running sign m starting at 0.5 flips on every
// event and accumulates m*(1 + erf((t - time)/(sigma*sqrt2))); if the
// final sign is negative, 1 is added.
func (ws *WaveSim) vals(row int32, s int, times []float32, sigma float32) []float32 {
	sSqrt2 := sigma * mat32.Sqrt(2)
	m := float32(0.5)
	accs := make([]float32, len(times))
	values := make([]float32, len(times))
	for _, t := range ws.waveSlice(row, s) {
		if t >= TMax {
			break
		}
		for idx, tm := range times {
			if t < tm {
				values[idx] = 1 - values[idx]
			}
		}
		m = -m
		if t <= TMin {
			continue
		}
		if sSqrt2 > 0 {
			for idx, tm := range times {
				accs[idx] += m * (1 + mat32.Erf((t-tm)/sSqrt2))
			}
		}
	}
	if sSqrt2 == 0 {
		return values
	}
	if m < 0 {
		for idx := range accs {
			accs[idx]++
		}
	}
	return accs
}

// Vals samples a line at the given times; see vals for the semantics of
// sigma.
func (ws *WaveSim) Vals(line, s int, times []float32, sigma float32) []float32 {
	return ws.vals(ws.LMap[line], s, times, sigma)
}

// Val samples a line at one time.
func (ws *WaveSim) Val(line, s int, time, sigma float32) float32 {
	return ws.vals(ws.LMap[line], s, []float32{time}, sigma)[0]
}

// ValsPPO samples interface entry o at the given times.
func (ws *WaveSim) ValsPPO(o, s int, times []float32, sigma float32) []float32 {
	return ws.vals(ws.CMap[o], s, times, sigma)
}

// ValPPO samples interface entry o at one time.
func (ws *WaveSim) ValPPO(o, s int, time, sigma float32) float32 {
	return ws.vals(ws.CMap[o], s, []float32{time}, sigma)[0]
}

// LineDelay returns the transport delay of a line for the given
// destination polarity.
func (ws *WaveSim) LineDelay(line, polarity int) float32 {
	return ws.LineTimes[line][0][polarity]
}

// SetLineDelay sets the transport delay of a line for the given
// destination polarity.
func (ws *WaveSim) SetLineDelay(line, polarity int, delay float32) {
	ws.LineTimes[line][0][polarity] = delay
}

// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wavesim

import "goki.dev/mat32/v2"

//gosl: start wavesim

// levelEval evaluates the ops of one level range for the stimulus columns
// [stStart, stStop) and returns the number of overflowed events.
func (ws *WaveSim) levelEval(opStart, opStop int32, stStart, stStop int) int64 {
	overflows := int64(0)
	for oi := opStart; oi < opStop; oi++ {
		for s := stStart; s < stStop; s++ {
			overflows += ws.waveEval(&ws.Ops[oi], s)
		}
	}
	return overflows
}

// waveEval merges the two input event streams of one op into its output
// slot for stimulus column s.  The transport delay of a line is applied
// to each event as it arrives at the line's reader, indexed by the output
// value the event produces; pulse-rejection thresholds are indexed by the
// value the output leaves.  Narrow pulses and capacity overruns retract
// the latest committed event, keeping the slot strictly increasing and
// TMax-terminated.
func (ws *WaveSim) waveEval(op *Op, s int) int64 {
	st := ws.State
	lt := ws.LineTimes
	sdim := ws.SDim
	overflows := int64(0)

	zCap := int32(st[int(op.ZMem)*sdim+s])

	aCur := int32(0)
	bCur := int32(0)
	zCur := op.LUT & 1
	if zCur == 1 {
		st[int(op.ZMem+1)*sdim+s] = TMin
	}

	a := st[int(op.AMem+1)*sdim+s] + lt[op.ALine][0][zCur]
	b := st[int(op.BMem+1)*sdim+s] + lt[op.BLine][0][zCur]

	previousT := TMin
	currentT := mat32.Min(a, b)
	inputs := int32(0)
	var nextT, thresh float32

	for currentT < TMax {
		zVal := zCur & 1
		if b < a {
			bCur++
			b = st[int(op.BMem+1+bCur)*sdim+s] + lt[op.BLine][0][zVal^1]
			thresh = lt[op.BLine][1][zVal]
			inputs ^= 2
			nextT = b
		} else {
			aCur++
			a = st[int(op.AMem+1+aCur)*sdim+s] + lt[op.ALine][0][zVal^1]
			thresh = lt[op.ALine][1][zVal]
			inputs ^= 1
			nextT = a
		}

		if (zCur & 1) != ((op.LUT >> inputs) & 1) {
			// a toggle is committed if there is space in the slot and it
			// is the first one, or the following toggle lands earlier
			// (delay skew), or the pulse is wide enough; otherwise the
			// previous toggle is retracted.
			if zCur >= zCap-2 {
				zCur--
				overflows++
				if zCur > 0 {
					previousT = st[int(op.ZMem+zCur)*sdim+s]
				} else {
					previousT = TMin
				}
			} else if zCur == 0 || nextT < currentT || currentT-previousT > thresh {
				st[int(op.ZMem+1+zCur)*sdim+s] = currentT
				previousT = currentT
				zCur++
			} else {
				zCur--
				if zCur > 0 {
					previousT = st[int(op.ZMem+zCur)*sdim+s]
				} else {
					previousT = TMin
				}
			}
		}
		currentT = mat32.Min(a, b)
	}

	st[int(op.ZMem+1+zCur)*sdim+s] = TMax
	return overflows
}

//gosl: end wavesim

//gosl: hlsl wavesim
/*
// // binding is var, set
[[vk::binding(0, 0)]] uniform LevelParams Level;
[[vk::binding(0, 1)]] RWStructuredBuffer<Op> Ops;
[[vk::binding(1, 1)]] RWStructuredBuffer<float> State;
[[vk::binding(2, 1)]] RWStructuredBuffer<float> LineTimes;
[[vk::binding(3, 1)]] RWStructuredBuffer<int> Overflows;
[numthreads(32, 16, 1)]
void main(uint3 idx : SV_DispatchThreadID) {
	int s = int(idx.x);
	int oi = Level.OpStart + int(idx.y);
	if (s >= Level.SDim || oi >= Level.OpStop) {
		return;
	}
	Op op = Ops[oi];
	int sdim = Level.SDim;
	float TMAX = 0x1p127;
	float TMIN = -0x1p127;
	int zCap = int(State[op.ZMem * sdim + s]);
	int aCur = 0;
	int bCur = 0;
	int zCur = op.LUT & 1;
	if (zCur == 1) {
		State[(op.ZMem + 1) * sdim + s] = TMIN;
	}
	float a = State[(op.AMem + 1) * sdim + s] + LineTimes[op.ALine * 4 + zCur];
	float b = State[(op.BMem + 1) * sdim + s] + LineTimes[op.BLine * 4 + zCur];
	float previousT = TMIN;
	float currentT = min(a, b);
	int inputs = 0;
	float nextT = TMAX;
	float thresh = 0.0;
	int ovf = 0;
	while (currentT < TMAX) {
		int zVal = zCur & 1;
		if (b < a) {
			bCur++;
			b = State[(op.BMem + 1 + bCur) * sdim + s] + LineTimes[op.BLine * 4 + (zVal ^ 1)];
			thresh = LineTimes[op.BLine * 4 + 2 + zVal];
			inputs ^= 2;
			nextT = b;
		} else {
			aCur++;
			a = State[(op.AMem + 1 + aCur) * sdim + s] + LineTimes[op.ALine * 4 + (zVal ^ 1)];
			thresh = LineTimes[op.ALine * 4 + 2 + zVal];
			inputs ^= 1;
			nextT = a;
		}
		if ((zCur & 1) != ((op.LUT >> inputs) & 1)) {
			if (zCur >= zCap - 2) {
				zCur--;
				ovf++;
				previousT = (zCur > 0) ? State[(op.ZMem + zCur) * sdim + s] : TMIN;
			} else if (zCur == 0 || nextT < currentT || currentT - previousT > thresh) {
				State[(op.ZMem + 1 + zCur) * sdim + s] = currentT;
				previousT = currentT;
				zCur++;
			} else {
				zCur--;
				previousT = (zCur > 0) ? State[(op.ZMem + zCur) * sdim + s] : TMIN;
			}
		}
		currentT = min(a, b);
	}
	State[(op.ZMem + 1 + zCur) * sdim + s] = TMAX;
	if (ovf > 0) {
		InterlockedAdd(Overflows[oi], ovf);
	}
}
*/
//gosl: end wavesim

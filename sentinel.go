// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wavesim

// Waveform slots are bounded on both sides by finite float32 sentinels
// rather than IEEE infinities: delays are added onto event times, and
// TMax + delay must stay an ordinary value that still compares >= TMax.
const (

	// TMax terminates every waveform slot.  2^127, near the top of the
	// float32 range.
	TMax float32 = 0x1p127

	// TMin encodes an initial logic 1 (a rise at time -inf).
	TMin float32 = -0x1p127
)

// interfaceTDim is the slot size reserved for interface inputs and the
// scratch rows: capacity cell, at most two events, terminator.
const interfaceTDim = 4

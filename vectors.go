// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wavesim

import "github.com/adept-eda/wavesim/bittools"

// Vectors carries packed 4-valued stimuli for all interface entries.
// Bits[iface][plane][byte] holds one bit per vector, MSB first: plane 0
// is the initial value, plane 1 the final value, plane 2 the post-capture
// toggle flag.  Two-plane data is accepted (no toggle plane).
type Vectors struct {

	// NVectors is the number of vectors stored.
	NVectors int

	// Bits are the packed planes, one [plane][byte] pair per interface
	// entry.
	Bits [][][]uint8
}

// NewVectors allocates packed planes for niface interface entries and
// nvectors vectors with the given number of bit planes (2 or 3).
func NewVectors(niface, nvectors, planes int) *Vectors {
	nbytes := (nvectors + 7) / 8
	bits := make([][][]uint8, niface)
	for i := range bits {
		bits[i] = make([][]uint8, planes)
		for p := range bits[i] {
			bits[i][p] = make([]uint8, nbytes)
		}
	}
	return &Vectors{NVectors: nvectors, Bits: bits}
}

// Planes returns the number of bit planes carried per interface entry.
func (v *Vectors) Planes() int {
	if len(v.Bits) == 0 {
		return 0
	}
	return len(v.Bits[0])
}

// Set writes the 4-valued entry for one interface position and vector.
func (v *Vectors) Set(iface, vector int, initial, final, toggle bool) {
	planes := v.Bits[iface]
	set := func(p int, on bool) {
		if p >= len(planes) {
			return
		}
		if on {
			bittools.SetBit(planes[p], vector)
		} else {
			bittools.ClearBit(planes[p], vector)
		}
	}
	set(0, initial)
	set(1, final)
	set(2, toggle)
}

// Get reads back the 4-valued entry for one interface position and vector.
func (v *Vectors) Get(iface, vector int) (initial, final, toggle bool) {
	planes := v.Bits[iface]
	initial = bittools.BitIn(planes[0], vector) != 0
	final = bittools.BitIn(planes[1], vector) != 0
	if len(planes) > 2 {
		toggle = bittools.BitIn(planes[2], vector) != 0
	}
	return
}

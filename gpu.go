// Copyright (c) 2023, The WaveSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wavesim

import (
	"unsafe"

	"goki.dev/vgpu/v2/vgpu"
)

// LevelParams is the per-dispatch uniform selecting one level's op window.
type LevelParams struct {
	OpStart int32
	OpStop  int32
	SDim    int32

	pad int32
}

// GPUSim mirrors a WaveSim's store on the GPU and dispatches the wave
// kernel once per level over a (stimuli x ops) grid.  Results match the
// CPU kernel bit-for-bit modulo float32 associativity.  The host store
// stays authoritative for Assign and all observers: Assign writes host
// slots and syncs up, Propagate syncs the state and per-op overflow
// counters back down.
type GPUSim struct {
	*WaveSim

	GPU  *vgpu.GPU
	Sys  *vgpu.System
	Pipl *vgpu.Pipeline

	// LineTimesFlat is the delay table flattened to line*4 + k*2 + v for
	// the shader.
	LineTimesFlat []float32

	// OverflowCounts is the per-op overflow counter buffer, summed into
	// Overflows after every Propagate.
	OverflowCounts []int32

	level LevelParams
}

// NewGPUSim configures a compute system for the compiled simulator on
// the given compute GPU.  The shader binary is generated from the kernel
// source by the gosl tool.
func NewGPUSim(ws *WaveSim, gp *vgpu.GPU) *GPUSim {
	gs := &GPUSim{WaveSim: ws, GPU: gp}
	gs.LineTimesFlat = make([]float32, len(ws.LineTimes)*4)
	for li, lt := range ws.LineTimes {
		for k := 0; k < 2; k++ {
			for v := 0; v < 2; v++ {
				gs.LineTimesFlat[li*4+k*2+v] = lt[k][v]
			}
		}
	}
	gs.OverflowCounts = make([]int32, len(ws.Ops))

	sy := gp.NewComputeSystem("wavesim")
	pl := sy.NewPipeline("wavesim")
	pl.AddShaderFile("wavesim", vgpu.ComputeShader, "shaders/wavesim.spv")

	vars := sy.Vars()
	setp := vars.AddSet()
	setd := vars.AddSet()

	setp.AddStruct("Level", int(unsafe.Sizeof(LevelParams{})), 1, vgpu.Uniform, vgpu.ComputeShader)
	setd.AddStruct("Ops", int(unsafe.Sizeof(Op{})), len(ws.Ops), vgpu.Storage, vgpu.ComputeShader)
	setd.Add("State", vgpu.Float32, len(ws.State), vgpu.Storage, vgpu.ComputeShader)
	setd.Add("LineTimes", vgpu.Float32, len(gs.LineTimesFlat), vgpu.Storage, vgpu.ComputeShader)
	setd.Add("Overflows", vgpu.Int32, len(gs.OverflowCounts), vgpu.Storage, vgpu.ComputeShader)

	setp.ConfigVals(1)
	setd.ConfigVals(1)
	sy.Config()

	gs.Sys = sy
	gs.Pipl = pl
	gs.syncAllToGPU()

	vars.BindDynValIdx(0, "Level", 0)
	vars.BindDynValIdx(1, "Ops", 0)
	vars.BindDynValIdx(1, "State", 0)
	vars.BindDynValIdx(1, "LineTimes", 0)
	vars.BindDynValIdx(1, "Overflows", 0)
	sy.CmdResetBindVars(sy.CmdPool.Buff, 0)
	return gs
}

func (gs *GPUSim) val(set int, name string) *vgpu.Val {
	_, vl, _ := gs.Sys.Vars().ValByIdxTry(set, name, 0)
	return vl
}

// syncAllToGPU uploads ops, state, delays and counters.
func (gs *GPUSim) syncAllToGPU() {
	gs.val(1, "Ops").CopyFromBytes(unsafe.Pointer(&gs.Ops[0]))
	gs.val(1, "State").CopyFromBytes(unsafe.Pointer(&gs.State[0]))
	gs.val(1, "LineTimes").CopyFromBytes(unsafe.Pointer(&gs.LineTimesFlat[0]))
	gs.val(1, "Overflows").CopyFromBytes(unsafe.Pointer(&gs.OverflowCounts[0]))
	gs.Sys.Mem.SyncToGPU()
}

// Assign lowers vectors on the host and uploads the refreshed store.
func (gs *GPUSim) Assign(vecs *Vectors, time float32, offset int) error {
	if err := gs.WaveSim.Assign(vecs, time, offset); err != nil {
		return err
	}
	gs.val(1, "State").CopyFromBytes(unsafe.Pointer(&gs.State[0]))
	gs.Sys.Mem.SyncToGPU()
	return nil
}

// SetLineDelay updates the host table, the flattened device copy, and
// uploads it.
func (gs *GPUSim) SetLineDelay(line, polarity int, delay float32) {
	gs.WaveSim.SetLineDelay(line, polarity, delay)
	gs.LineTimesFlat[line*4+polarity] = delay
	gs.val(1, "LineTimes").CopyFromBytes(unsafe.Pointer(&gs.LineTimesFlat[0]))
	gs.Sys.Mem.SyncToGPU()
}

// Propagate dispatches one kernel per level and syncs the store and the
// overflow counters back to the host.
func (gs *GPUSim) Propagate(sdim int) {
	if sdim <= 0 || sdim > gs.SDim {
		sdim = gs.SDim
	}
	for li := range gs.LevelStarts {
		gs.level = LevelParams{
			OpStart: gs.LevelStarts[li],
			OpStop:  gs.LevelStops[li],
			SDim:    int32(sdim),
		}
		nops := int(gs.level.OpStop - gs.level.OpStart)
		if nops == 0 {
			continue
		}
		gs.val(0, "Level").CopyFromBytes(unsafe.Pointer(&gs.level))
		gs.Sys.Mem.SyncToGPU()
		gs.Pipl.ComputeCommand(sdim, nops, 1)
		gs.Sys.ComputeSubmitWait()
	}
	gs.Sys.Mem.SyncValIdxFmGPU(1, "State", 0)
	gs.val(1, "State").CopyToBytes(unsafe.Pointer(&gs.State[0]))
	gs.Sys.Mem.SyncValIdxFmGPU(1, "Overflows", 0)
	gs.val(1, "Overflows").CopyToBytes(unsafe.Pointer(&gs.OverflowCounts[0]))
	for i, n := range gs.OverflowCounts {
		gs.Overflows += int64(n)
		gs.OverflowCounts[i] = 0
	}
	gs.val(1, "Overflows").CopyFromBytes(unsafe.Pointer(&gs.OverflowCounts[0]))
	gs.Sys.Mem.SyncToGPU()
}

// Destroy releases the compute system.
func (gs *GPUSim) Destroy() {
	gs.Sys.Destroy()
}

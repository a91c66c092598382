package compiler

// paramRegs holds the four registers used for the first four
// arguments of every call; localRegs holds the seven registers
// available for non-address-taken locals (spec.md §4.7). Both lists
// are registers the code generator also knows by these exact names —
// see codegen.go's operand materialization.
var (
	paramRegs = []string{"A", "B", "C", "D"}
	localRegs = []string{"E", "F", "G", "H", "I", "J", "K"}
)

// AllocateFunction assigns a Storage, and either a Reg or an Offset,
// to every parameter and local of fn. It runs exactly once per
// function, after the function's IR (including the address-taken
// flags set during expression analysis) is fully built — spec.md
// §4.7's ordering requirement, since a variable found to be
// address-taken anywhere in the body must be excluded from register
// storage everywhere.
func AllocateFunction(fn *Function) {
	allocateParams(fn)
	allocateLocals(fn)
	collectSavedRegs(fn)
	adjustParamOffsets(fn)
	spillAddressTakenParams(fn)
	fn.FrameSize = frameSize(fn)
}

// adjustParamOffsets corrects every stack-resident parameter's nominal
// offset (−2, −4, … counted from the call boundary) for the callee-
// saved registers this function turned out to push between CALL and
// PUSH FP — each one moves FP two bytes further from the caller's
// pushed arguments (spec.md §4.7 step 5).
func adjustParamOffsets(fn *Function) {
	extra := int16(2 * len(fn.SavedRegs))
	for _, prm := range fn.Params {
		if prm.Storage == StorageFrame {
			prm.Offset -= extra
		}
	}
}

func allocateParams(fn *Function) {
	for i, prm := range fn.Params {
		if i < len(paramRegs) {
			prm.Storage = StorageRegister
			prm.Reg = paramRegs[i]
		} else {
			prm.Storage = StorageFrame
			prm.Offset = int16(-2 * (i - len(paramRegs) + 1))
		}
	}
}

// allocateLocals assigns each local's own slot — the value slot for a
// scalar, or the slot holding the address of its data region for an
// array — then lays out array data regions contiguously after every
// scalar/pointer slot, per spec.md §4.7.
func allocateLocals(fn *Function) {
	regIdx := 0
	var frameOffset int16

	for _, lv := range fn.Locals {
		if !lv.AddressTaken && regIdx < len(localRegs) {
			lv.Storage = StorageRegister
			lv.Reg = localRegs[regIdx]
			regIdx++
			continue
		}
		lv.Storage = StorageFrame
		lv.Offset = frameOffset
		frameOffset += 2
	}

	dataBase := frameOffset
	for _, lv := range fn.Locals {
		if !lv.Type.IsArray {
			continue
		}
		lv.ArrayDataOffset = dataBase
		dataBase += int16(lv.Type.ArrayLen * 2)
	}
}

// spillAddressTakenParams moves any register-resident parameter whose
// address was taken somewhere in the body onto the frame instead,
// after the locals layout is known so the spill slots don't collide
// with local storage (spec.md §4.7).
func spillAddressTakenParams(fn *Function) {
	next := locaFrameEnd(fn)
	for _, prm := range fn.Params {
		if prm.Storage == StorageRegister && prm.AddressTaken {
			prm.Storage = StorageFrame
			prm.Offset = next
			next += 2
		}
	}
}

// locaFrameEnd returns the first unused frame offset above every
// local's scalar and array-data storage.
func locaFrameEnd(fn *Function) int16 {
	var end int16
	for _, lv := range fn.Locals {
		if lv.Storage == StorageFrame && lv.Offset+2 > end {
			end = lv.Offset + 2
		}
		if lv.Type.IsArray {
			if dataEnd := lv.ArrayDataOffset + int16(lv.Type.ArrayLen*2); dataEnd > end {
				end = dataEnd
			}
		}
	}
	return end
}

// frameSize returns the total bytes the prologue must reserve: every
// local's frame-resident storage plus any address-taken parameter's
// spill slot. Caller-pushed non-spilled parameters don't count — they
// already exist on the stack before the callee's frame begins.
func frameSize(fn *Function) int16 {
	end := locaFrameEnd(fn)
	for _, prm := range fn.Params {
		if prm.Storage == StorageFrame && prm.AddressTaken && prm.Offset+2 > end {
			end = prm.Offset + 2
		}
	}
	return end
}

// collectSavedRegs records which of the callee-saved local registers
// this function actually used, in a fixed order, so the code
// generator's prologue/epilogue (spec.md §4.8 steps 2 and 9) push and
// pop exactly those and no others.
func collectSavedRegs(fn *Function) {
	used := map[string]bool{}
	for _, lv := range fn.Locals {
		if lv.Storage == StorageRegister {
			used[lv.Reg] = true
		}
	}
	fn.SavedRegs = nil
	for _, r := range localRegs {
		if used[r] {
			fn.SavedRegs = append(fn.SavedRegs, r)
		}
	}
}

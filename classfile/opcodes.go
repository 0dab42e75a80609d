package classfile

import "fmt"

// Opcodes referenced by name. Ranges of similar instructions (loads,
// stores, arithmetic) are handled numerically in frame computation.
const (
	opNop             = 0x00
	opAconstNull      = 0x01
	opIconstM1        = 0x02
	opIconst5         = 0x08
	opLconst0         = 0x09
	opLconst1         = 0x0a
	opFconst0         = 0x0b
	opFconst2         = 0x0d
	opDconst0         = 0x0e
	opDconst1         = 0x0f
	opBipush          = 0x10
	opSipush          = 0x11
	opLdc             = 0x12
	opLdcW            = 0x13
	opLdc2W           = 0x14
	opIload           = 0x15
	opLload           = 0x16
	opFload           = 0x17
	opDload           = 0x18
	opAload           = 0x19
	opIload0          = 0x1a
	opAload3          = 0x2d
	opIaload          = 0x2e
	opLaload          = 0x2f
	opFaload          = 0x30
	opDaload          = 0x31
	opAaload          = 0x32
	opSaload          = 0x35
	opIstore          = 0x36
	opLstore          = 0x37
	opFstore          = 0x38
	opDstore          = 0x39
	opAstore          = 0x3a
	opIstore0         = 0x3b
	opAstore3         = 0x4e
	opIastore         = 0x4f
	opLastore         = 0x50
	opFastore         = 0x51
	opDastore         = 0x52
	opAastore         = 0x53
	opSastore         = 0x56
	opPop             = 0x57
	opPop2            = 0x58
	opDup             = 0x59
	opDupX1           = 0x5a
	opDupX2           = 0x5b
	opDup2            = 0x5c
	opDup2X1          = 0x5d
	opDup2X2          = 0x5e
	opSwap            = 0x5f
	opIadd            = 0x60
	opDrem            = 0x73
	opIneg            = 0x74
	opLneg            = 0x75
	opFneg            = 0x76
	opDneg            = 0x77
	opIshl            = 0x78
	opLushr           = 0x7d
	opIand            = 0x7e
	opLxor            = 0x83
	opIinc            = 0x84
	opI2l             = 0x85
	opI2s             = 0x93
	opLcmp            = 0x94
	opDcmpg           = 0x98
	opIfeq            = 0x99
	opIfle            = 0x9e
	opIfIcmpeq        = 0x9f
	opIfAcmpne        = 0xa6
	opGoto            = 0xa7
	opJsr             = 0xa8
	opRet             = 0xa9
	opTableswitch     = 0xaa
	opLookupswitch    = 0xab
	opIreturn         = 0xac
	opReturn          = 0xb1
	opGetstatic       = 0xb2
	opPutstatic       = 0xb3
	opGetfield        = 0xb4
	opPutfield        = 0xb5
	opInvokevirtual   = 0xb6
	opInvokespecial   = 0xb7
	opInvokestatic    = 0xb8
	opInvokeinterface = 0xb9
	opInvokedynamic   = 0xba
	opNew             = 0xbb
	opNewarray        = 0xbc
	opAnewarray       = 0xbd
	opArraylength     = 0xbe
	opAthrow          = 0xbf
	opCheckcast       = 0xc0
	opInstanceof      = 0xc1
	opMonitorenter    = 0xc2
	opMonitorexit     = 0xc3
	opWide            = 0xc4
	opMultianewarray  = 0xc5
	opIfnull          = 0xc6
	opIfnonnull       = 0xc7
	opGotoW           = 0xc8
	opJsrW            = 0xc9
)

// insnLengths holds the length of every fixed-size instruction; 0 marks
// variable-length instructions and -1 invalid opcodes.
var insnLengths = func() [256]int8 {
	var t [256]int8
	for op := range t {
		t[op] = -1
	}
	set := func(from, to int, n int8) {
		for op := from; op <= to; op++ {
			t[op] = n
		}
	}
	set(opNop, opDconst1, 1)
	set(opBipush, opBipush, 2)
	set(opSipush, opSipush, 3)
	set(opLdc, opLdc, 2)
	set(opLdcW, opLdc2W, 3)
	set(opIload, opAload, 2)
	set(opIload0, opSaload, 1)
	set(opIstore, opAstore, 2)
	set(opIstore0, opLxor, 1)
	set(opIinc, opIinc, 3)
	set(opI2l, opDcmpg, 1)
	set(opIfeq, opJsr, 3)
	set(opRet, opRet, 2)
	set(opTableswitch, opLookupswitch, 0)
	set(opIreturn, opReturn, 1)
	set(opGetstatic, opInvokestatic, 3)
	set(opInvokeinterface, opInvokedynamic, 5)
	set(opNew, opNew, 3)
	set(opNewarray, opNewarray, 2)
	set(opAnewarray, opAnewarray, 3)
	set(opArraylength, opAthrow, 1)
	set(opCheckcast, opInstanceof, 3)
	set(opMonitorenter, opMonitorexit, 1)
	set(opWide, opWide, 0)
	set(opMultianewarray, opMultianewarray, 4)
	set(opIfnull, opIfnonnull, 3)
	set(opGotoW, opJsrW, 5)
	return t
}()

// insnLen returns the length of the instruction at pc.
func insnLen(code []byte, pc int) (int, error) {
	op := code[pc]
	switch n := insnLengths[op]; {
	case n > 0:
		if pc+int(n) > len(code) {
			return 0, fmt.Errorf("%w: instruction 0x%02x at %d overruns code", ErrMalformed, op, pc)
		}
		return int(n), nil
	case n < 0:
		return 0, fmt.Errorf("%w: invalid opcode 0x%02x at %d", ErrMalformed, op, pc)
	}

	var n int
	switch op {
	case opWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("%w: truncated wide at %d", ErrMalformed, pc)
		}
		n = 4
		if code[pc+1] == opIinc {
			n = 6
		}
	case opTableswitch:
		base := roundup(pc+1, 4)
		if base+12 > len(code) {
			return 0, fmt.Errorf("%w: truncated tableswitch at %d", ErrMalformed, pc)
		}
		low := int32(order.Uint32(code[base+4:]))
		high := int32(order.Uint32(code[base+8:]))
		if high < low {
			return 0, fmt.Errorf("%w: tableswitch at %d has high < low", ErrMalformed, pc)
		}
		n = base + 12 + 4*int(int64(high)-int64(low)+1) - pc
	case opLookupswitch:
		base := roundup(pc+1, 4)
		if base+8 > len(code) {
			return 0, fmt.Errorf("%w: truncated lookupswitch at %d", ErrMalformed, pc)
		}
		npairs := int32(order.Uint32(code[base+4:]))
		if npairs < 0 {
			return 0, fmt.Errorf("%w: lookupswitch at %d has negative npairs", ErrMalformed, pc)
		}
		n = base + 8 + 8*int(npairs) - pc
	}
	if pc+n > len(code) {
		return 0, fmt.Errorf("%w: instruction 0x%02x at %d overruns code", ErrMalformed, op, pc)
	}
	return n, nil
}

// switchTargets returns the absolute default and case targets of the
// tableswitch or lookupswitch at pc.
func switchTargets(code []byte, pc int) []int {
	base := roundup(pc+1, 4)
	s4 := func(at int) int { return int(int32(order.Uint32(code[at:]))) }
	targets := []int{pc + s4(base)}
	if code[pc] == opTableswitch {
		n := s4(base+8) - s4(base+4) + 1
		for i := range n {
			targets = append(targets, pc+s4(base+12+4*i))
		}
		return targets
	}
	for i := range s4(base + 4) {
		targets = append(targets, pc+s4(base+8+8*i+4))
	}
	return targets
}

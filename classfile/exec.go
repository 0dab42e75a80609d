package classfile

import "fmt"

var errStackUnderflow = fmt.Errorf("%w: operand stack underflow", ErrMalformed)

func (a *analyzer) push(f *frame, t VType) {
	f.stack = append(f.stack, t)
	if t.wide() {
		f.stack = append(f.stack, vTop)
	}
	a.maxStack = max(a.maxStack, len(f.stack))
}

// pop removes n slots and returns them, top of stack last.
func pop(f *frame, n int) ([]VType, error) {
	if len(f.stack) < n {
		return nil, errStackUnderflow
	}
	vs := f.stack[len(f.stack)-n:]
	f.stack = f.stack[:len(f.stack)-n]
	return append([]VType(nil), vs...), nil
}

func setLocal(f *frame, i int, t VType) error {
	if i >= len(f.locals) || (t.wide() && i+1 >= len(f.locals)) {
		return fmt.Errorf("%w: local %d out of range", ErrMalformed, i)
	}
	if i > 0 && f.locals[i-1].wide() {
		f.locals[i-1] = vTop
	}
	f.locals[i] = t
	if t.wide() {
		f.locals[i+1] = vTop
	}
	return nil
}

// typed load and store kinds, in opcode order.
var kindTypes = [...]VType{vInt, vLong, vFloat, vDouble}

func (a *analyzer) load(f *frame, kind, i int) error {
	if i >= len(f.locals) {
		return fmt.Errorf("%w: local %d out of range", ErrMalformed, i)
	}
	if kind == 4 {
		a.push(f, f.locals[i])
		return nil
	}
	a.push(f, kindTypes[kind])
	return nil
}

func store(f *frame, kind, i int) error {
	if kind == 4 {
		v, err := pop(f, 1)
		if err != nil {
			return err
		}
		return setLocal(f, i, v[0])
	}
	t := kindTypes[kind]
	n := 1
	if t.wide() {
		n = 2
	}
	if _, err := pop(f, n); err != nil {
		return err
	}
	return setLocal(f, i, t)
}

// popPush pops n slots and pushes t.
func (a *analyzer) popPush(f *frame, n int, t VType) error {
	if _, err := pop(f, n); err != nil {
		return err
	}
	a.push(f, t)
	return nil
}

// reorder pops n slots and pushes them back in the order given by idx,
// where idx[i] indexes the popped slots (0 is the deepest).
func (a *analyzer) reorder(f *frame, n int, idx ...int) error {
	vs, err := pop(f, n)
	if err != nil {
		return err
	}
	for _, i := range idx {
		f.stack = append(f.stack, vs[i])
	}
	a.maxStack = max(a.maxStack, len(f.stack))
	return nil
}

// conversions maps i2l..i2s to the slots they pop and the type they push.
var conversions = [...]struct {
	pop  int
	push VType
}{
	{1, vLong}, {1, vFloat}, {1, vDouble}, // i2l i2f i2d
	{2, vInt}, {2, vFloat}, {2, vDouble}, // l2i l2f l2d
	{1, vInt}, {1, vLong}, {1, vDouble}, // f2i f2l f2d
	{2, vInt}, {2, vLong}, {2, vFloat}, // d2i d2l d2f
	{1, vInt}, {1, vInt}, {1, vInt}, // i2b i2c i2s
}

var primitiveArrays = map[byte]string{
	4: "[Z", 5: "[C", 6: "[F", 7: "[D", 8: "[B", 9: "[S", 10: "[I", 11: "[J",
}

func (a *analyzer) u2(pc int) uint16 { return order.Uint16(a.code[pc:]) }

// constantType returns the type ldc pushes for constant i.
func (a *analyzer) constantType(i uint16) (VType, error) {
	c, ok := a.pool.Get(i)
	if !ok {
		return vTop, fmt.Errorf("%w: ldc of missing constant %d", ErrMalformed, i)
	}
	switch c.Tag {
	case TagInteger:
		return vInt, nil
	case TagFloat:
		return vFloat, nil
	case TagLong:
		return vLong, nil
	case TagDouble:
		return vDouble, nil
	case TagString:
		return vObject("java/lang/String"), nil
	case TagClass:
		return vObject("java/lang/Class"), nil
	case TagMethodType:
		return vObject("java/lang/invoke/MethodType"), nil
	case TagMethodHandle:
		return vObject("java/lang/invoke/MethodHandle"), nil
	case TagDynamic:
		_, desc, err := a.pool.NameAndType(c.B)
		if err != nil {
			return vTop, err
		}
		t, _, err := fieldType(desc)
		return t, err
	}
	return vTop, fmt.Errorf("%w: ldc of constant tag %d", ErrMalformed, c.Tag)
}

// execute applies the instruction at pc to f.
func (a *analyzer) execute(pc int, f *frame) error {
	code := a.code
	op := code[pc]
	switch {
	case op == opNop:
	case op == opAconstNull:
		a.push(f, vNull)
	case op >= opIconstM1 && op <= opIconst5, op == opBipush, op == opSipush:
		a.push(f, vInt)
	case op == opLconst0, op == opLconst1:
		a.push(f, vLong)
	case op >= opFconst0 && op <= opFconst2:
		a.push(f, vFloat)
	case op == opDconst0, op == opDconst1:
		a.push(f, vDouble)
	case op == opLdc, op == opLdcW, op == opLdc2W:
		i := uint16(code[pc+1])
		if op != opLdc {
			i = a.u2(pc + 1)
		}
		t, err := a.constantType(i)
		if err != nil {
			return err
		}
		a.push(f, t)
	case op >= opIload && op <= opAload:
		return a.load(f, int(op-opIload), int(code[pc+1]))
	case op >= opIload0 && op <= opAload3:
		k := int(op - opIload0)
		return a.load(f, k/4, k%4)
	case op == opAaload:
		vs, err := pop(f, 2)
		if err != nil {
			return err
		}
		arr := vs[0]
		switch {
		case arr.Item == ItemNull:
			a.push(f, vNull)
		case arr.Item == ItemObject && len(arr.Class) > 1 && arr.Class[0] == '[':
			t, err := componentOf(arr.Class)
			if err != nil {
				return err
			}
			a.push(f, t)
		default:
			a.push(f, vObject(ObjectClass))
		}
	case op >= opIaload && op <= opSaload:
		push := vInt
		switch op {
		case opLaload:
			push = vLong
		case opFaload:
			push = vFloat
		case opDaload:
			push = vDouble
		}
		return a.popPush(f, 2, push)
	case op >= opIstore && op <= opAstore:
		return store(f, int(op-opIstore), int(code[pc+1]))
	case op >= opIstore0 && op <= opAstore3:
		k := int(op - opIstore0)
		return store(f, k/4, k%4)
	case op >= opIastore && op <= opSastore:
		n := 3
		if op == opLastore || op == opDastore {
			n = 4
		}
		_, err := pop(f, n)
		return err
	case op == opPop:
		_, err := pop(f, 1)
		return err
	case op == opPop2:
		_, err := pop(f, 2)
		return err
	case op == opDup:
		return a.reorder(f, 1, 0, 0)
	case op == opDupX1:
		return a.reorder(f, 2, 1, 0, 1)
	case op == opDupX2:
		return a.reorder(f, 3, 2, 0, 1, 2)
	case op == opDup2:
		return a.reorder(f, 2, 0, 1, 0, 1)
	case op == opDup2X1:
		return a.reorder(f, 3, 1, 2, 0, 1, 2)
	case op == opDup2X2:
		return a.reorder(f, 4, 2, 3, 0, 1, 2, 3)
	case op == opSwap:
		return a.reorder(f, 2, 1, 0)
	case op >= opIadd && op <= opDrem:
		k := int(op-opIadd) % 4
		return a.popPush(f, 2*slotsOf(kindTypes[k]), kindTypes[k])
	case op >= opIneg && op <= opDneg:
		k := int(op - opIneg)
		return a.popPush(f, slotsOf(kindTypes[k]), kindTypes[k])
	case op >= opIshl && op <= opLushr:
		if (op-opIshl)%2 == 0 {
			return a.popPush(f, 2, vInt)
		}
		return a.popPush(f, 3, vLong)
	case op >= opIand && op <= opLxor:
		if (op-opIand)%2 == 0 {
			return a.popPush(f, 2, vInt)
		}
		return a.popPush(f, 4, vLong)
	case op == opIinc:
		return setLocal(f, int(code[pc+1]), vInt)
	case op >= opI2l && op <= opI2s:
		c := conversions[op-opI2l]
		return a.popPush(f, c.pop, c.push)
	case op >= opLcmp && op <= opDcmpg:
		n := 4
		if op == opLcmp+1 || op == opLcmp+2 { // fcmpl, fcmpg
			n = 2
		}
		return a.popPush(f, n, vInt)
	case op >= opIfeq && op <= opIfle, op == opIfnull, op == opIfnonnull,
		op == opTableswitch, op == opLookupswitch,
		op == opAthrow, op == opMonitorenter, op == opMonitorexit:
		_, err := pop(f, 1)
		return err
	case op >= opIfIcmpeq && op <= opIfAcmpne:
		_, err := pop(f, 2)
		return err
	case op == opGoto, op == opGotoW, op == opReturn:
	case op >= opIreturn && op < opReturn:
		n := 1
		if op == opIreturn+1 || op == opIreturn+3 { // lreturn, dreturn
			n = 2
		}
		_, err := pop(f, n)
		return err
	case op >= opGetstatic && op <= opPutfield:
		return a.field(pc, f)
	case op >= opInvokevirtual && op <= opInvokedynamic:
		return a.invoke(pc, f)
	case op == opNew:
		a.push(f, VType{Item: ItemUninitialized, Offset: pc})
	case op == opNewarray:
		class, ok := primitiveArrays[code[pc+1]]
		if !ok {
			return fmt.Errorf("%w: newarray type %d", ErrMalformed, code[pc+1])
		}
		return a.popPush(f, 1, vObject(class))
	case op == opAnewarray:
		class, err := a.pool.ClassName(a.u2(pc + 1))
		if err != nil {
			return err
		}
		return a.popPush(f, 1, vObject(arrayOf(class)))
	case op == opArraylength, op == opInstanceof:
		return a.popPush(f, 1, vInt)
	case op == opCheckcast:
		class, err := a.pool.ClassName(a.u2(pc + 1))
		if err != nil {
			return err
		}
		return a.popPush(f, 1, vObject(class))
	case op == opMultianewarray:
		class, err := a.pool.ClassName(a.u2(pc + 1))
		if err != nil {
			return err
		}
		return a.popPush(f, int(code[pc+3]), vObject(class))
	case op == opWide:
		op2, i := code[pc+1], int(a.u2(pc+2))
		switch {
		case op2 == opIinc:
			return setLocal(f, i, vInt)
		case op2 >= opIload && op2 <= opAload:
			return a.load(f, int(op2-opIload), i)
		case op2 >= opIstore && op2 <= opAstore:
			return store(f, int(op2-opIstore), i)
		}
		return fmt.Errorf("%w: wide 0x%02x", ErrUnsupportedInstruction, op2)
	default:
		return fmt.Errorf("%w: opcode 0x%02x", ErrUnsupportedInstruction, op)
	}
	return nil
}

func slotsOf(t VType) int {
	if t.wide() {
		return 2
	}
	return 1
}

func (a *analyzer) field(pc int, f *frame) error {
	op := a.code[pc]
	_, _, desc, err := a.pool.MemberRef(a.u2(pc + 1))
	if err != nil {
		return err
	}
	t, _, err := fieldType(desc)
	if err != nil {
		return err
	}
	switch op {
	case opGetstatic:
		a.push(f, t)
	case opPutstatic:
		_, err = pop(f, slotsOf(t))
	case opGetfield:
		err = a.popPush(f, 1, t)
	case opPutfield:
		_, err = pop(f, slotsOf(t)+1)
	}
	return err
}

func (a *analyzer) invoke(pc int, f *frame) error {
	op := a.code[pc]
	idx := a.u2(pc + 1)
	var name, desc string
	var err error
	if op == opInvokedynamic {
		c, ok := a.pool.Get(idx)
		if !ok || c.Tag != TagInvokeDynamic {
			return fmt.Errorf("%w: invokedynamic of constant %d", ErrMalformed, idx)
		}
		name, desc, err = a.pool.NameAndType(c.B)
	} else {
		_, name, desc, err = a.pool.MemberRef(idx)
	}
	if err != nil {
		return err
	}
	args, ret, err := methodType(desc)
	if err != nil {
		return err
	}
	if _, err := pop(f, slots(args)); err != nil {
		return err
	}
	if op != opInvokestatic && op != opInvokedynamic {
		recv, err := pop(f, 1)
		if err != nil {
			return err
		}
		if op == opInvokespecial && name == "<init>" {
			if err := a.initialize(f, recv[0]); err != nil {
				return err
			}
		}
	}
	if ret != nil {
		a.push(f, *ret)
	}
	return nil
}

// initialize replaces every occurrence of an uninitialized type with the
// class it becomes once its constructor returns.
func (a *analyzer) initialize(f *frame, u VType) error {
	var init VType
	switch u.Item {
	case ItemUninitializedThis:
		init = vObject(a.owner)
	case ItemUninitialized:
		if u.Offset+3 > len(a.code) || a.code[u.Offset] != opNew {
			return fmt.Errorf("%w: uninitialized(%d) does not name a new instruction", ErrMalformed, u.Offset)
		}
		class, err := a.pool.ClassName(a.u2(u.Offset + 1))
		if err != nil {
			return err
		}
		init = vObject(class)
	default:
		return nil
	}
	for i, t := range f.locals {
		if t == u {
			f.locals[i] = init
		}
	}
	for i, t := range f.stack {
		if t == u {
			f.stack[i] = init
		}
	}
	return nil
}

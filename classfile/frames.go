package classfile

import (
	"bytes"
	"fmt"
	"slices"
)

// frame is the type state at an instruction boundary. Long and double
// values take two slots, the second holding top, in both locals and stack.
type frame struct {
	locals []VType
	stack  []VType
}

func (f *frame) clone() *frame {
	return &frame{locals: slices.Clone(f.locals), stack: slices.Clone(f.stack)}
}

// analyzer infers the frame at every reachable instruction of one method.
type analyzer struct {
	pool   *ConstantPool
	h      Hierarchy
	owner  string
	name   string
	desc   string
	static bool
	code   []byte

	handlers []Handler
	starts   []bool   // instruction boundaries
	points   []bool   // offsets that need a StackMapTable entry
	in       []*frame // frame on entry, nil while unreached
	queued   []bool
	queue    []int

	maxStack  int
	maxLocals int
}

func newAnalyzer(cf *ClassFile, h Hierarchy, m *Member, code *Code) (*analyzer, error) {
	name, desc := cf.MemberName(m)
	a := &analyzer{
		pool:     cf.Pool,
		h:        h,
		owner:    cf.Name(),
		name:     name,
		desc:     desc,
		static:   m.Access&AccStatic != 0,
		code:     slices.Clone(code.Bytecode),
		handlers: slices.Clone(code.Handlers),
	}
	n := len(a.code)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty code", ErrMalformed)
	}
	if n > MaxCodeLength {
		return nil, fmt.Errorf("%w: code length %d exceeds %d", ErrMalformed, n, MaxCodeLength)
	}
	a.starts = make([]bool, n)
	a.points = make([]bool, n)
	a.in = make([]*frame, n)
	a.queued = make([]bool, n)
	return a, nil
}

// scan finds instruction boundaries, frame points and the locals size.
func (a *analyzer) scan(argSlots int) error {
	a.maxLocals = argSlots
	var jumps []int
	for pc := 0; pc < len(a.code); {
		n, err := insnLen(a.code, pc)
		if err != nil {
			return err
		}
		a.starts[pc] = true
		a.maxLocals = max(a.maxLocals, localsUsed(a.code, pc))
		targets, falls, err := a.branches(pc)
		if err != nil {
			return err
		}
		jumps = append(jumps, targets...)
		if !falls && pc+n < len(a.code) {
			a.points[pc+n] = true
		}
		pc += n
	}
	for _, t := range jumps {
		if t < 0 || t >= len(a.code) || !a.starts[t] {
			return fmt.Errorf("%w: branch target %d is not an instruction", ErrMalformed, t)
		}
		a.points[t] = true
	}
	for _, h := range a.handlers {
		if int(h.Start) >= int(h.End) || int(h.End) > len(a.code) || !a.starts[h.Start] ||
			int(h.Handler) >= len(a.code) || !a.starts[h.Handler] {
			return fmt.Errorf("%w: bad exception table entry %+v", ErrMalformed, h)
		}
		a.points[h.Handler] = true
	}
	return nil
}

// localsUsed returns one past the highest local slot the instruction at pc
// touches, or 0.
func localsUsed(code []byte, pc int) int {
	op := code[pc]
	wideSize := func(kind int) int {
		if kind == 1 || kind == 3 {
			return 2
		}
		return 1
	}
	switch {
	case op >= opIload && op <= opAload:
		return int(code[pc+1]) + wideSize(int(op-opIload))
	case op >= opIload0 && op <= opAload3:
		k := int(op - opIload0)
		return k%4 + wideSize(k/4)
	case op >= opIstore && op <= opAstore:
		return int(code[pc+1]) + wideSize(int(op-opIstore))
	case op >= opIstore0 && op <= opAstore3:
		k := int(op - opIstore0)
		return k%4 + wideSize(k/4)
	case op == opIinc:
		return int(code[pc+1]) + 1
	case op == opWide:
		idx := int(order.Uint16(code[pc+2:]))
		op2 := code[pc+1]
		switch {
		case op2 >= opIload && op2 <= opAload:
			return idx + wideSize(int(op2-opIload))
		case op2 >= opIstore && op2 <= opAstore:
			return idx + wideSize(int(op2-opIstore))
		}
		return idx + 1
	}
	return 0
}

// branches returns the jump targets of the instruction at pc and whether
// control can fall through to the next instruction.
func (a *analyzer) branches(pc int) ([]int, bool, error) {
	code := a.code
	op := code[pc]
	s2 := func() int { return pc + int(int16(order.Uint16(code[pc+1:]))) }
	switch {
	case op >= opIfeq && op <= opIfAcmpne, op == opIfnull, op == opIfnonnull:
		return []int{s2()}, true, nil
	case op == opGoto:
		return []int{s2()}, false, nil
	case op == opGotoW:
		return []int{pc + int(int32(order.Uint32(code[pc+1:])))}, false, nil
	case op == opTableswitch, op == opLookupswitch:
		return switchTargets(code, pc), false, nil
	case op >= opIreturn && op <= opReturn, op == opAthrow:
		return nil, false, nil
	case op == opJsr, op == opJsrW, op == opRet, op == opWide && code[pc+1] == opRet:
		return nil, false, fmt.Errorf("%w: subroutine opcode 0x%02x at %d", ErrUnsupportedInstruction, op, pc)
	}
	return nil, true, nil
}

// initial returns the frame on method entry.
func (a *analyzer) initial() (*frame, error) {
	args, _, err := methodType(a.desc)
	if err != nil {
		return nil, err
	}
	need := slots(args)
	if !a.static {
		need++
	}
	f := &frame{locals: make([]VType, max(a.maxLocals, need))}
	i := 0
	if !a.static {
		if a.name == "<init>" && a.owner != ObjectClass {
			f.locals[0] = vUninitThis
		} else {
			f.locals[0] = vObject(a.owner)
		}
		i++
	}
	for _, t := range args {
		f.locals[i] = t
		i++
		if t.wide() {
			i++
		}
	}
	return f, nil
}

func (a *analyzer) enqueue(pc int) {
	if !a.queued[pc] {
		a.queued[pc] = true
		a.queue = append(a.queue, pc)
	}
}

// mergeInto joins f into the entry frame of target.
func (a *analyzer) mergeInto(target int, f *frame) error {
	dst := a.in[target]
	if dst == nil {
		a.in[target] = f.clone()
		a.enqueue(target)
		return nil
	}
	if len(dst.stack) != len(f.stack) {
		return fmt.Errorf("%w: inconsistent stack height at %d (%d vs %d)", ErrMalformed, target, len(dst.stack), len(f.stack))
	}
	changed := false
	for i := range dst.locals {
		t, err := a.merge(dst.locals[i], f.locals[i])
		if err != nil {
			return err
		}
		if t != dst.locals[i] {
			dst.locals[i] = t
			changed = true
		}
	}
	for i := range dst.stack {
		t, err := a.merge(dst.stack[i], f.stack[i])
		if err != nil {
			return err
		}
		if t != dst.stack[i] {
			dst.stack[i] = t
			changed = true
		}
	}
	if changed {
		a.enqueue(target)
	}
	return nil
}

// merge returns the least type both x and y are assignable to.
func (a *analyzer) merge(x, y VType) (VType, error) {
	switch {
	case x == y:
		return x, nil
	case !x.isReference() || !y.isReference():
		return vTop, nil
	case x.Item == ItemNull:
		return y, nil
	case y.Item == ItemNull:
		return x, nil
	}
	c, err := commonSuperclass(a.h, x.Class, y.Class)
	if err != nil {
		return vTop, err
	}
	return vObject(c), nil
}

// run iterates to a fixed point.
func (a *analyzer) run() error {
	args, _, err := methodType(a.desc)
	if err != nil {
		return err
	}
	argSlots := slots(args)
	if !a.static {
		argSlots++
	}
	if err := a.scan(argSlots); err != nil {
		return err
	}
	f, err := a.initial()
	if err != nil {
		return err
	}
	a.in[0] = f
	a.enqueue(0)

	for len(a.queue) > 0 {
		pc := a.queue[len(a.queue)-1]
		a.queue = a.queue[:len(a.queue)-1]
		a.queued[pc] = false

		out := a.in[pc].clone()
		if err := a.execute(pc, out); err != nil {
			return fmt.Errorf("at %d: %w", pc, err)
		}
		targets, falls, err := a.branches(pc)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if err := a.mergeInto(t, out); err != nil {
				return err
			}
		}
		if falls {
			n, _ := insnLen(a.code, pc)
			if pc+n >= len(a.code) {
				return fmt.Errorf("%w: execution falls off the end of the code", ErrMalformed)
			}
			if err := a.mergeInto(pc+n, out); err != nil {
				return err
			}
		}
		for _, h := range a.handlers {
			if pc < int(h.Start) || pc >= int(h.End) {
				continue
			}
			catch := vObject("java/lang/Throwable")
			if h.CatchType != 0 {
				name, err := a.pool.ClassName(h.CatchType)
				if err != nil {
					return err
				}
				catch = vObject(name)
			}
			a.maxStack = max(a.maxStack, 1)
			for _, locals := range [][]VType{a.in[pc].locals, out.locals} {
				if err := a.mergeInto(int(h.Handler), &frame{locals: locals, stack: []VType{catch}}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// deadBlocks returns the [start, end) ranges of unreachable instructions.
func (a *analyzer) deadBlocks() [][2]int {
	var blocks [][2]int
	for pc := 0; pc < len(a.code); pc++ {
		if !a.starts[pc] || a.in[pc] != nil {
			continue
		}
		end := pc + 1
		for end < len(a.code) && !(a.starts[end] && a.in[end] != nil) {
			end++
		}
		blocks = append(blocks, [2]int{pc, end})
		pc = end - 1
	}
	return blocks
}

// removeDeadCode replaces each unreachable block by nop...athrow, gives it
// a frame with an empty locals and a Throwable on the stack, and cuts it out
// of every exception handler range.
func (a *analyzer) removeDeadCode() {
	blocks := a.deadBlocks()
	if len(blocks) == 0 {
		return
	}
	dead := make([]bool, len(a.code))
	for _, b := range blocks {
		for i := b[0]; i < b[1]; i++ {
			a.code[i] = opNop
			dead[i] = true
		}
		a.code[b[1]-1] = opAthrow
		a.in[b[0]] = &frame{stack: []VType{vObject("java/lang/Throwable")}}
		a.points[b[0]] = true
		a.maxStack = max(a.maxStack, 1)
	}
	var handlers []Handler
	for _, h := range a.handlers {
		start := -1
		for pc := int(h.Start); pc <= int(h.End); pc++ {
			live := pc < int(h.End) && !dead[pc]
			switch {
			case live && start < 0:
				start = pc
			case !live && start >= 0:
				handlers = append(handlers, Handler{Start: uint16(start), End: uint16(pc), Handler: h.Handler, CatchType: h.CatchType})
				start = -1
			}
		}
	}
	a.handlers = handlers
}

// stackMap encodes the frames at every frame point as a StackMapTable body,
// or returns nil if the method needs none.
func (a *analyzer) stackMap(initial *frame) ([]byte, error) {
	var buf bytes.Buffer
	w := newWriter(&buf)
	count := 0
	prev := collapse(initial.locals, true)
	prevPC := -1

	w.u2(0) // patched below
	for pc, point := range a.points {
		if !point || a.in[pc] == nil {
			continue
		}
		f := a.in[pc]
		locals := collapse(f.locals, true)
		stack := collapse(f.stack, false)
		delta := pc - prevPC - 1
		k := len(locals) - len(prev)
		switch {
		case len(stack) == 0 && slices.Equal(locals, prev):
			if delta < 64 {
				w.u1(uint8(delta))
			} else {
				w.u1(251)
				w.u2(uint16(delta))
			}
		case len(stack) == 1 && slices.Equal(locals, prev):
			if delta < 64 {
				w.u1(uint8(64 + delta))
			} else {
				w.u1(247)
				w.u2(uint16(delta))
			}
			a.writeVType(w, stack[0])
		case len(stack) == 0 && k > 0 && k <= 3 && slices.Equal(locals[:len(prev)], prev):
			w.u1(uint8(251 + k))
			w.u2(uint16(delta))
			for _, t := range locals[len(prev):] {
				a.writeVType(w, t)
			}
		case len(stack) == 0 && k < 0 && k >= -3 && slices.Equal(prev[:len(locals)], locals):
			w.u1(uint8(251 + k))
			w.u2(uint16(delta))
		default:
			w.u1(255)
			w.u2(uint16(delta))
			w.u2(uint16(len(locals)))
			for _, t := range locals {
				a.writeVType(w, t)
			}
			w.u2(uint16(len(stack)))
			for _, t := range stack {
				a.writeVType(w, t)
			}
		}
		prev, prevPC = locals, pc
		count++
	}
	if w.err != nil {
		return nil, w.err
	}
	if count == 0 {
		return nil, nil
	}
	b := buf.Bytes()
	order.PutUint16(b, uint16(count))
	return b, nil
}

func (a *analyzer) writeVType(w *writer, t VType) {
	w.u1(uint8(t.Item))
	switch t.Item {
	case ItemObject:
		idx, err := a.pool.AddClass(t.Class)
		w.setError(err)
		w.u2(idx)
	case ItemUninitialized:
		w.u2(uint16(t.Offset))
	}
}

// collapse converts slot-indexed types to StackMapTable form, where long and
// double take one entry. Trailing tops are dropped from locals.
func collapse(ts []VType, trim bool) []VType {
	out := make([]VType, 0, len(ts))
	for i := 0; i < len(ts); i++ {
		out = append(out, ts[i])
		if ts[i].wide() {
			i++
		}
	}
	if trim {
		for len(out) > 0 && out[len(out)-1] == vTop {
			out = out[:len(out)-1]
		}
	}
	return out
}

// computeFrames returns a copy of code with recomputed max_stack,
// max_locals and StackMapTable. New constants are added to cf.Pool.
func computeFrames(cf *ClassFile, h Hierarchy, m *Member, code *Code) (*Code, error) {
	a, err := newAnalyzer(cf, h, m, code)
	if err != nil {
		return nil, err
	}
	if err := a.run(); err != nil {
		return nil, err
	}
	a.removeDeadCode()
	initial, err := a.initial()
	if err != nil {
		return nil, err
	}
	smt, err := a.stackMap(initial)
	if err != nil {
		return nil, err
	}
	if a.maxStack > 0xFFFF || a.maxLocals > 0xFFFF {
		return nil, fmt.Errorf("%w: max_stack %d or max_locals %d out of range", ErrMalformed, a.maxStack, a.maxLocals)
	}

	out := &Code{
		MaxStack:  uint16(a.maxStack),
		MaxLocals: uint16(a.maxLocals),
		Bytecode:  a.code,
		Handlers:  a.handlers,
	}
	for _, attr := range code.Attributes {
		if name, _ := cf.Pool.Utf8(attr.Name); name != AttrStackMapTable {
			out.Attributes = append(out.Attributes, attr)
		}
	}
	if smt != nil {
		name, err := cf.Pool.AddUtf8(AttrStackMapTable)
		if err != nil {
			return nil, err
		}
		out.Attributes = append(out.Attributes, Attribute{Name: name, Info: smt})
	}
	return out, nil
}

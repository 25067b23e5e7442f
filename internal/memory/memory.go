// internal/memory/memory.go
package memory

import (
	"fmt"
	"sort"
)

// BaseAddress is where the simulated address space starts.
const BaseAddress uint32 = 0x1000

// GlobalScope keys symbols declared outside any function.
const GlobalScope = "global"

type symbolKey struct {
	Scope string
	Name  string
}

// Symbol is the per-name metadata behind an address.
type Symbol struct {
	Name    string
	Scope   string
	Type    CType
	Pointer bool
	Address uint32
	Array   *ArrayInfo // nil for scalars
}

// ArrayInfo records an array's element type and resolved count.
type ArrayInfo struct {
	ElemType CType
	Count    int
}

// ParamBinding carries an evaluated argument into a new frame.
type ParamBinding struct {
	Name    string
	Type    CType
	Pointer bool
	Value   Value
}

// Frame is a call activation record. A popped frame is retained verbatim in
// the completed history and never reused.
type Frame struct {
	ID          int
	Function    string
	Caller      string
	ParamOrder  []string
	ParamAddrs  map[string]uint32
	LocalOrder  []string
	LocalAddrs  map[string]uint32
	ReturnValue *Value

	// shadowed holds symbols this frame's bindings displaced (recursion);
	// they are restored when the frame pops.
	shadowed map[symbolKey]*Symbol
	owned    []symbolKey
}

// Space is the simulated memory image: a bump-allocated flat address space,
// the symbol table, pointer targets, and the call-frame stack. Addresses are
// never reused within one run.
type Space struct {
	next           uint32
	cells          map[uint32]Value
	symbols        map[symbolKey]*Symbol
	pointerTargets map[uint32]uint32
	frames         []*Frame
	completed      []*Frame
	lastReturn     map[string]Value
	nextFrameID    int
}

func NewSpace() *Space {
	s := &Space{}
	s.Reset()
	return s
}

// Reset clears all maps and the frame stack and rewinds the bump pointer.
// Calling it twice in a row is the same as calling it once.
func (s *Space) Reset() {
	s.next = BaseAddress
	s.cells = make(map[uint32]Value)
	s.symbols = make(map[symbolKey]*Symbol)
	s.pointerTargets = make(map[uint32]uint32)
	s.frames = nil
	s.completed = nil
	s.lastReturn = make(map[string]Value)
	s.nextFrameID = 1
}

// Allocate bump-allocates size bytes and returns the base address. It never
// fails and never reclaims.
func (s *Space) Allocate(size int) uint32 {
	addr := s.next
	s.next += uint32(size)
	return addr
}

func (s *Space) bind(sym *Symbol) error {
	key := symbolKey{sym.Scope, sym.Name}
	if existing, ok := s.symbols[key]; ok {
		top := s.top()
		if top == nil {
			return fmt.Errorf("%s already declared in %s", sym.Name, sym.Scope)
		}
		if top.shadowed == nil {
			top.shadowed = make(map[symbolKey]*Symbol)
		}
		if _, dup := top.shadowed[key]; !dup {
			top.shadowed[key] = existing
		}
	}
	s.symbols[key] = sym
	if top := s.top(); top != nil {
		top.owned = append(top.owned, key)
	}
	return nil
}

// DeclareScalar allocates a cell for a variable, registers its symbol, and
// stores the default or the provided literal. Pointers default to null with
// no recorded target.
func (s *Space) DeclareScalar(name string, t CType, pointer bool, init *Value, scope string) (uint32, error) {
	size := t.Size()
	if pointer {
		size = PointerSize
	}
	addr := s.Allocate(size)
	sym := &Symbol{Name: name, Scope: scope, Type: t, Pointer: pointer, Address: addr}
	if err := s.bind(sym); err != nil {
		return 0, err
	}
	val := t.Default()
	if pointer {
		val = Int(0)
	}
	if init != nil {
		val = init.Coerce(t)
		if pointer {
			val = *init
		}
	}
	s.cells[addr] = val
	return addr, nil
}

// DeclareArray allocates count contiguous elements and writes initializer
// values by position, default-filling the rest. A count that is not a
// resolved positive integer is rejected.
func (s *Space) DeclareArray(name string, elem CType, count int, init []Value, scope string) (uint32, error) {
	if count <= 0 {
		return 0, fmt.Errorf("array %s has invalid size %d", name, count)
	}
	addr := s.Allocate(count * elem.Size())
	sym := &Symbol{
		Name: name, Scope: scope, Type: elem, Address: addr,
		Array: &ArrayInfo{ElemType: elem, Count: count},
	}
	if err := s.bind(sym); err != nil {
		return 0, err
	}
	for i := 0; i < count; i++ {
		v := elem.Default()
		if i < len(init) {
			v = init[i].Coerce(elem)
		}
		s.cells[addr+uint32(i*elem.Size())] = v
	}
	return addr, nil
}

// DeclareArrayString initializes a char array from a quoted string: one byte
// per character and a null terminator at the first unfilled slot.
func (s *Space) DeclareArrayString(name string, elem CType, count int, str string, scope string) (uint32, error) {
	if count <= 0 {
		return 0, fmt.Errorf("array %s has invalid size %d", name, count)
	}
	init := make([]Value, 0, count)
	for i := 0; i < count && i < len(str); i++ {
		init = append(init, Int(int64(str[i])))
	}
	if len(init) < count {
		init = append(init, Int(0))
	}
	return s.DeclareArray(name, elem, count, init, scope)
}

// resolve looks a name up starting at scope, falling back to globals and then
// walking the caller chain upward.
func (s *Space) resolve(name, scope string) (*Symbol, bool) {
	if sym, ok := s.symbols[symbolKey{scope, name}]; ok {
		return sym, true
	}
	if sym, ok := s.symbols[symbolKey{GlobalScope, name}]; ok {
		return sym, true
	}
	seen := map[string]bool{scope: true}
	cur := scope
	for {
		fr := s.topFrameOf(cur)
		if fr == nil || fr.Caller == "" || seen[fr.Caller] {
			return nil, false
		}
		cur = fr.Caller
		seen[cur] = true
		if sym, ok := s.symbols[symbolKey{cur, name}]; ok {
			return sym, true
		}
	}
}

func (s *Space) topFrameOf(function string) *Frame {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Function == function {
			return s.frames[i]
		}
	}
	return nil
}

// Lookup exposes symbol resolution to the engine.
func (s *Space) Lookup(name, scope string) (*Symbol, bool) {
	return s.resolve(name, scope)
}

// GetVariable reads a variable through scope resolution. Arrays resolve to
// their base address.
func (s *Space) GetVariable(name, scope string) (Value, bool) {
	sym, ok := s.resolve(name, scope)
	if !ok {
		return Value{}, false
	}
	if sym.Array != nil {
		return Addr(sym.Address), true
	}
	return s.ReadCell(sym.Address), true
}

// SetVariable coerces and stores a value under an existing symbol; it fails
// without side effects when the name is undeclared in scope.
func (s *Space) SetVariable(name string, v Value, scope string) error {
	sym, ok := s.resolve(name, scope)
	if !ok {
		return fmt.Errorf("%s is not declared in %s", name, scope)
	}
	if sym.Pointer {
		s.cells[sym.Address] = v
		if v.Kind == KindAddr {
			s.pointerTargets[sym.Address] = v.A
		}
		return nil
	}
	s.cells[sym.Address] = v.Coerce(sym.Type)
	return nil
}

// SetPointer stores the address of target into a pointer variable and
// records the target for display.
func (s *Space) SetPointer(name, target, scope string) error {
	sym, ok := s.resolve(name, scope)
	if !ok {
		return fmt.Errorf("%s is not declared in %s", name, scope)
	}
	tsym, ok := s.resolve(target, scope)
	if !ok {
		return fmt.Errorf("%s is not declared in %s", target, scope)
	}
	s.cells[sym.Address] = Addr(tsym.Address)
	s.pointerTargets[sym.Address] = tsym.Address
	return nil
}

// PointerTarget returns the recorded target of a pointer cell.
func (s *Space) PointerTarget(addr uint32) (uint32, bool) {
	t, ok := s.pointerTargets[addr]
	return t, ok
}

func (s *Space) ReadCell(addr uint32) Value {
	if v, ok := s.cells[addr]; ok {
		return v
	}
	return Int(0)
}

func (s *Space) WriteCell(addr uint32, v Value) {
	s.cells[addr] = v
}

// ReadElement reads one array element; callers bounds-check against
// sym.Array.Count first.
func (s *Space) ReadElement(sym *Symbol, idx int) Value {
	return s.ReadCell(sym.Address + uint32(idx*sym.Array.ElemType.Size()))
}

func (s *Space) WriteElement(sym *Symbol, idx int, v Value) {
	s.cells[sym.Address+uint32(idx*sym.Array.ElemType.Size())] = v.Coerce(sym.Array.ElemType)
}

// PushFrame allocates one fixed-width slot per parameter, registers them
// under the callee's scope, and pushes the activation record.
func (s *Space) PushFrame(function string, params []ParamBinding, caller string) *Frame {
	fr := &Frame{
		ID:         s.nextFrameID,
		Function:   function,
		Caller:     caller,
		ParamAddrs: make(map[string]uint32),
		LocalAddrs: make(map[string]uint32),
	}
	s.nextFrameID++
	s.frames = append(s.frames, fr)
	for _, p := range params {
		addr := s.Allocate(PointerSize)
		sym := &Symbol{Name: p.Name, Scope: function, Type: p.Type, Pointer: p.Pointer, Address: addr}
		// bind cannot fail while this frame is on top: duplicates shadow.
		_ = s.bind(sym)
		if p.Pointer {
			s.cells[addr] = p.Value
			if p.Value.Kind == KindAddr {
				s.pointerTargets[addr] = p.Value.A
			}
		} else {
			s.cells[addr] = p.Value.Coerce(p.Type)
		}
		fr.ParamOrder = append(fr.ParamOrder, p.Name)
		fr.ParamAddrs[p.Name] = addr
	}
	return fr
}

// AddLocal records a declared local under the top frame for stack display.
func (s *Space) AddLocal(name string, addr uint32) {
	top := s.top()
	if top == nil {
		return
	}
	if _, ok := top.LocalAddrs[name]; !ok {
		top.LocalOrder = append(top.LocalOrder, name)
	}
	top.LocalAddrs[name] = addr
}

// PopFrame removes the top frame, restores any symbols it shadowed, records
// its return value into the last-return cache, and retains the frame in the
// completed history.
func (s *Space) PopFrame(ret *Value) *Frame {
	top := s.top()
	if top == nil {
		return nil
	}
	s.frames = s.frames[:len(s.frames)-1]
	for i := len(top.owned) - 1; i >= 0; i-- {
		key := top.owned[i]
		delete(s.symbols, key)
		if prev, ok := top.shadowed[key]; ok {
			s.symbols[key] = prev
		}
	}
	top.ReturnValue = ret
	if ret != nil {
		s.lastReturn[top.Function] = *ret
	}
	s.completed = append(s.completed, top)
	return top
}

func (s *Space) top() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// TopFrame returns the currently running frame, or nil outside any call.
func (s *Space) TopFrame() *Frame { return s.top() }

// FrameDepth returns how many frames are live.
func (s *Space) FrameDepth() int { return len(s.frames) }

// LastReturn returns the most recent return value of the named function.
func (s *Space) LastReturn(function string) (Value, bool) {
	v, ok := s.lastReturn[function]
	return v, ok
}

// --- snapshots ---

// MemEntry is one row of the memory snapshot consumed by the display.
type MemEntry struct {
	Address        string  `json:"address"`
	Name           string  `json:"name"`
	Scope          string  `json:"scope"`
	Value          float64 `json:"value"`
	Display        string  `json:"display"`
	IsPointer      bool    `json:"isPointer"`
	PointerTarget  string  `json:"pointerTarget,omitempty"`
	IsArrayElement bool    `json:"isArrayElement"`
	ArrayName      string  `json:"arrayName,omitempty"`
	ElementIndex   int     `json:"elementIndex"`
}

// Snapshot enumerates every live symbol, expanding arrays one entry per
// element, sorted by scope then address. It is a pure projection.
func (s *Space) Snapshot() []MemEntry {
	type row struct {
		addr  uint32
		entry MemEntry
	}
	var rows []row
	for _, sym := range s.symbols {
		if sym.Array != nil {
			for i := 0; i < sym.Array.Count; i++ {
				addr := sym.Address + uint32(i*sym.Array.ElemType.Size())
				v := s.ReadCell(addr)
				rows = append(rows, row{addr, MemEntry{
					Address:        FormatAddress(addr),
					Name:           fmt.Sprintf("%s[%d]", sym.Name, i),
					Scope:          sym.Scope,
					Value:          v.Num(),
					Display:        v.String(),
					IsArrayElement: true,
					ArrayName:      sym.Name,
					ElementIndex:   i,
				}})
			}
			continue
		}
		v := s.ReadCell(sym.Address)
		entry := MemEntry{
			Address:   FormatAddress(sym.Address),
			Name:      sym.Name,
			Scope:     sym.Scope,
			Value:     v.Num(),
			Display:   v.String(),
			IsPointer: sym.Pointer,
		}
		if sym.Pointer {
			if target, ok := s.pointerTargets[sym.Address]; ok {
				entry.PointerTarget = FormatAddress(target)
			}
		}
		rows = append(rows, row{sym.Address, entry})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].entry.Scope != rows[j].entry.Scope {
			return rows[i].entry.Scope < rows[j].entry.Scope
		}
		return rows[i].addr < rows[j].addr
	})
	entries := make([]MemEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.entry
	}
	return entries
}

// VarEntry is one variable row of a stack snapshot frame.
type VarEntry struct {
	Address string  `json:"address"`
	Value   float64 `json:"value"`
}

// FrameEntry is one frame of the stack snapshot, bottom-to-top.
type FrameEntry struct {
	Function    string              `json:"function"`
	FrameID     int                 `json:"frameId"`
	Caller      string              `json:"caller"`
	Variables   map[string]VarEntry `json:"variables"`
	ReturnValue *float64            `json:"returnValue,omitempty"`
}

func (s *Space) frameEntry(fr *Frame) FrameEntry {
	entry := FrameEntry{
		Function:  fr.Function,
		FrameID:   fr.ID,
		Caller:    fr.Caller,
		Variables: make(map[string]VarEntry),
	}
	for _, name := range fr.ParamOrder {
		addr := fr.ParamAddrs[name]
		entry.Variables[name] = VarEntry{Address: FormatAddress(addr), Value: s.ReadCell(addr).Num()}
	}
	for _, name := range fr.LocalOrder {
		addr := fr.LocalAddrs[name]
		entry.Variables[name] = VarEntry{Address: FormatAddress(addr), Value: s.ReadCell(addr).Num()}
	}
	if fr.ReturnValue != nil {
		n := fr.ReturnValue.Num()
		entry.ReturnValue = &n
	}
	return entry
}

// StackSnapshot projects the live frames bottom-to-top.
func (s *Space) StackSnapshot() []FrameEntry {
	entries := make([]FrameEntry, 0, len(s.frames))
	for _, fr := range s.frames {
		entries = append(entries, s.frameEntry(fr))
	}
	return entries
}

// CompletedFrames projects the frames retained after their functions
// returned, in completion order.
func (s *Space) CompletedFrames() []FrameEntry {
	entries := make([]FrameEntry, 0, len(s.completed))
	for _, fr := range s.completed {
		entries = append(entries, s.frameEntry(fr))
	}
	return entries
}

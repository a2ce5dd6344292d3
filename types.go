// Completion: 100% - Type system complete
package main

import "fmt"

// Type represents a type in the source language's type system.
type Type struct {
	Kind       TypeKind
	Elem       *Type    // element type, for Array
	StructName string   // nominal struct id, for Struct
	Params     []*Type  // parameter types, for Function
	Ret        *Type    // return type, for Function
}

// TypeKind enumerates the closed set of type categories the core touches.
// It mirrors the runtime's Any tag set (array, function and struct
// included) plus unknown and void, which have a Type but no runtime Any
// tag of their own.
type TypeKind int

const (
	KindUnknown TypeKind = iota
	KindNil
	KindInt
	KindLong
	KindInt32
	KindUint
	KindUint32
	KindDouble
	KindFloat
	KindStr
	KindChar
	KindBool
	KindByte
	KindArray
	KindFunction
	KindStruct
	KindAny
	KindVoid
)

func (k TypeKind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindInt32:
		return "int32"
	case KindUint:
		return "uint"
	case KindUint32:
		return "uint32"
	case KindDouble:
		return "double"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindChar:
		return "char"
	case KindBool:
		return "bool"
	case KindByte:
		return "byte"
	case KindArray:
		return "array"
	case KindFunction:
		return "function"
	case KindStruct:
		return "struct"
	case KindAny:
		return "any"
	case KindVoid:
		return "void"
	default:
		return "unknown"
	}
}

func (t *Type) String() string {
	if t == nil {
		return "unknown"
	}
	switch t.Kind {
	case KindArray:
		return t.Elem.String() + "[]"
	case KindFunction:
		out := "("
		for i, p := range t.Params {
			if i > 0 {
				out += ", "
			}
			out += p.String()
		}
		return out + ") => " + t.Ret.String()
	case KindStruct:
		return t.StructName
	default:
		return t.Kind.String()
	}
}

// Convenience singletons for the primitive kinds. Array/function/struct
// types are always heap-allocated Type values since they carry children.
var (
	TypeUnknown = &Type{Kind: KindUnknown}
	TypeNil     = &Type{Kind: KindNil}
	TypeInt     = &Type{Kind: KindInt}
	TypeLong    = &Type{Kind: KindLong}
	TypeInt32   = &Type{Kind: KindInt32}
	TypeUint    = &Type{Kind: KindUint}
	TypeUint32  = &Type{Kind: KindUint32}
	TypeDouble  = &Type{Kind: KindDouble}
	TypeFloat   = &Type{Kind: KindFloat}
	TypeStr     = &Type{Kind: KindStr}
	TypeChar    = &Type{Kind: KindChar}
	TypeBool    = &Type{Kind: KindBool}
	TypeByte    = &Type{Kind: KindByte}
	TypeAny     = &Type{Kind: KindAny}
	TypeVoid    = &Type{Kind: KindVoid}
)

// ArrayOf builds (or would build) the array-of-elem type.
func ArrayOf(elem *Type) *Type { return &Type{Kind: KindArray, Elem: elem} }

// FunctionType builds a closure/lambda type with the given signature.
func FunctionType(params []*Type, ret *Type) *Type {
	return &Type{Kind: KindFunction, Params: params, Ret: ret}
}

// StructType builds a nominal struct reference type.
func StructType(name string) *Type { return &Type{Kind: KindStruct, StructName: name} }

// IsPrimitive reports whether values of this type are stored inline
// (never behind a handle) - the "needs capture by reference" predicate
// also keys off primitives, but arrays are added there explicitly since
// they are still reference-shaped at the ABI level.
func (t *Type) IsPrimitive() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindInt, KindLong, KindInt32, KindUint, KindUint32, KindDouble, KindFloat, KindBool, KindByte, KindChar:
		return true
	default:
		return false
	}
}

// IsHeapShaped reports whether a value of this type lives behind a
// Handle (H) at the ABI level: strings, arrays, structs, closures, any.
func (t *Type) IsHeapShaped() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindStr, KindArray, KindStruct, KindFunction, KindAny:
		return true
	default:
		return false
	}
}

// NeedsCaptureByRef reports whether a lambda-captured local must be
// rewritten as a heap cell: true for primitives plus array (because
// push/pop may return a new payload pointer that must be written back
// through the captured cell).
func (t *Type) NeedsCaptureByRef() bool {
	if t == nil {
		return false
	}
	if t.IsPrimitive() {
		return true
	}
	return t.Kind == KindArray
}

// CType renders the native C type used for this type's declarations and
// signatures.
func (t *Type) CType() string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case KindInt:
		return "int"
	case KindLong:
		return "long long"
	case KindInt32:
		return "int32_t"
	case KindUint:
		return "uint64_t"
	case KindUint32:
		return "uint32_t"
	case KindDouble:
		return "double"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindByte:
		return "unsigned char"
	case KindChar:
		return "char"
	case KindStr, KindArray, KindFunction:
		return "H" // fat handle
	case KindAny:
		return "sn_any_t"
	case KindStruct:
		return "sn_" + t.StructName
	case KindVoid:
		return "void"
	default:
		return "void*"
	}
}

// AnyTag returns the runtime tag name boxed/unboxed for this type when
// stored in an Any value.
func (t *Type) AnyTag() string {
	if t == nil {
		return "nil"
	}
	switch t.Kind {
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindFunction:
		return "function"
	case KindUnknown:
		// An element type inference never pinned down falls back to the
		// boxed representation.
		return "any"
	default:
		return t.Kind.String()
	}
}

// Equals does a structural comparison, used by the type checker to
// validate assignment and call compatibility.
func (t *Type) Equals(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindArray:
		return t.Elem.Equals(o.Elem)
	case KindStruct:
		return t.StructName == o.StructName
	case KindFunction:
		if len(t.Params) != len(o.Params) || !t.Ret.Equals(o.Ret) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equals(o.Params[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// MemoryQualifier is the source-level qualifier on a variable or
// parameter declaration.
type MemoryQualifier int

const (
	QualDefault MemoryQualifier = iota
	QualAsVal
	QualAsRef
)

func (q MemoryQualifier) String() string {
	switch q {
	case QualAsVal:
		return "as val"
	case QualAsRef:
		return "as ref"
	default:
		return "default"
	}
}

// SyncModifier marks a declaration or block as requiring atomic /
// locked access.
type SyncModifier int

const (
	SyncNone SyncModifier = iota
	SyncAtomic
)

// FunctionModifier is the three-way arena discipline a function picks.
type FunctionModifier int

const (
	FuncDefault FunctionModifier = iota
	FuncShared
	FuncPrivate
)

func (m FunctionModifier) String() string {
	switch m {
	case FuncShared:
		return "shared"
	case FuncPrivate:
		return "private"
	default:
		return "default"
	}
}

// ThreadState is the per-symbol tri-state lifecycle for spawn/sync
// tracking.
type ThreadState int

const (
	ThreadNormal ThreadState = iota
	ThreadPending
	ThreadSynchronized
)

func (s ThreadState) String() string {
	switch s {
	case ThreadPending:
		return "pending"
	case ThreadSynchronized:
		return "synchronized"
	default:
		return "normal"
	}
}

// FrozenState tracks how many in-flight spawns have captured (frozen) a
// symbol, plus which symbols a pending handle froze - this supplements
// a plain freeze count with the list of symbols a pending handle
// actually froze, for exact release at sync.
type FrozenState struct {
	FreezeCount int
	Frozen      bool
	FrozenArgs  []*Symbol
}

func (f *FrozenState) freeze(sym *Symbol) {
	f.FreezeCount++
	f.Frozen = true
	f.FrozenArgs = append(f.FrozenArgs, sym)
}

func (f *FrozenState) thaw() {
	if f.FreezeCount > 0 {
		f.FreezeCount--
	}
	f.Frozen = f.FreezeCount > 0
	if !f.Frozen {
		f.FrozenArgs = nil
	}
}

// errUnsupportedType builds the error for a type name the core doesn't
// model; nothing in the compiler calls it.
func errUnsupportedType(kind string) error {
	return fmt.Errorf("unsupported type: %s", kind)
}

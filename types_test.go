package main

import (
	"testing"
)

func TestCTypeMapping(t *testing.T) {
	cases := []struct {
		typ  *Type
		want string
	}{
		{TypeInt, "int"},
		{TypeLong, "long long"},
		{TypeBool, "bool"},
		{TypeByte, "unsigned char"},
		{TypeStr, "H"},
		{ArrayOf(TypeInt), "H"},
		{FunctionType(nil, TypeInt), "H"},
		{TypeAny, "sn_any_t"},
		{StructType("Point"), "sn_Point"},
		{TypeVoid, "void"},
	}
	for _, c := range cases {
		if got := c.typ.CType(); got != c.want {
			t.Errorf("CType(%v) = %q, want %q", c.typ, got, c.want)
		}
	}
}

func TestNeedsCaptureByRef(t *testing.T) {
	if !TypeInt.NeedsCaptureByRef() || !TypeDouble.NeedsCaptureByRef() || !TypeBool.NeedsCaptureByRef() {
		t.Error("primitives capture by reference")
	}
	if !ArrayOf(TypeInt).NeedsCaptureByRef() {
		t.Error("arrays capture by reference (push may move the payload)")
	}
	if TypeStr.NeedsCaptureByRef() || TypeAny.NeedsCaptureByRef() || StructType("S").NeedsCaptureByRef() {
		t.Error("handle-shaped values do not capture as cells")
	}
	if FunctionType(nil, TypeInt).NeedsCaptureByRef() {
		t.Error("closures do not capture as cells")
	}
}

func TestTypeEquals(t *testing.T) {
	if !ArrayOf(TypeInt).Equals(ArrayOf(TypeInt)) {
		t.Error("identical array types must be equal")
	}
	if ArrayOf(TypeInt).Equals(ArrayOf(TypeLong)) {
		t.Error("element types differ")
	}
	if !StructType("P").Equals(StructType("P")) || StructType("P").Equals(StructType("Q")) {
		t.Error("structs compare by nominal id")
	}
	f1 := FunctionType([]*Type{TypeInt}, TypeStr)
	f2 := FunctionType([]*Type{TypeInt}, TypeStr)
	f3 := FunctionType([]*Type{TypeLong}, TypeStr)
	if !f1.Equals(f2) || f1.Equals(f3) {
		t.Error("function types compare structurally")
	}
}

func TestAnyTagNames(t *testing.T) {
	cases := []struct {
		typ  *Type
		want string
	}{
		{TypeInt, "int"},
		{TypeLong, "long"},
		{TypeStr, "str"},
		{ArrayOf(TypeInt), "array"},
		{StructType("P"), "struct"},
		{FunctionType(nil, TypeVoid), "function"},
		{TypeUnknown, "any"},
	}
	for _, c := range cases {
		if got := c.typ.AnyTag(); got != c.want {
			t.Errorf("AnyTag(%v) = %q, want %q", c.typ, got, c.want)
		}
	}
}

func TestTypeStringRendering(t *testing.T) {
	if got := ArrayOf(ArrayOf(TypeInt)).String(); got != "int[][]" {
		t.Errorf("nested array renders %q", got)
	}
	if got := FunctionType([]*Type{TypeInt, TypeStr}, TypeBool).String(); got != "(int, str) => bool" {
		t.Errorf("function type renders %q", got)
	}
}

func TestIsHeapShaped(t *testing.T) {
	heap := []*Type{TypeStr, TypeAny, ArrayOf(TypeInt), StructType("P"), FunctionType(nil, TypeVoid)}
	for _, typ := range heap {
		if !typ.IsHeapShaped() {
			t.Errorf("%v should be heap-shaped", typ)
		}
	}
	for _, typ := range []*Type{TypeInt, TypeBool, TypeDouble, TypeVoid} {
		if typ.IsHeapShaped() {
			t.Errorf("%v should not be heap-shaped", typ)
		}
	}
}

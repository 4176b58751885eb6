package evaluator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TypeID identifies the runtime type of a Dynamic value.
type TypeID uint8

const (
	TypeUnit TypeID = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeChar
	TypeString
	TypeArray
	TypeMap
	TypeFnPtr
	// TypeDynamic is the wildcard sentinel used by dispatch. No value ever
	// carries it; registering a parameter with it marks the overload as
	// accepting any type at that position.
	TypeDynamic
)

var typeNames = [...]string{
	TypeUnit:    "()",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeBool:    "bool",
	TypeChar:    "char",
	TypeString:  "string",
	TypeArray:   "array",
	TypeMap:     "map",
	TypeFnPtr:   "Fn",
	TypeDynamic: "dynamic",
}

// Name returns the diagnostic name of the type.
func (t TypeID) Name() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// SharedCell is an interior-mutable, multi-owner container. It is the only
// legitimate source of aliasing between value slots; cloning a Dynamic that
// wraps a cell aliases the cell instead of copying the payload.
type SharedCell struct {
	value Dynamic
	locks int
}

// Dynamic is a tagged, runtime-typed value.
//
// Copying a Dynamic with plain assignment transfers or shares the underlying
// storage; use Clone for the deep copy the language semantics require.
type Dynamic struct {
	tag      TypeID
	readOnly bool
	n        int64
	f        float64
	s        string
	arr      *[]Dynamic
	m        map[string]Dynamic
	fp       *FnPtr
	cell     *SharedCell
}

// Unit returns the unit value.
func Unit() Dynamic { return Dynamic{tag: TypeUnit} }

func NewInt(v int64) Dynamic     { return Dynamic{tag: TypeInt, n: v} }
func NewFloat(v float64) Dynamic { return Dynamic{tag: TypeFloat, f: v} }
func NewBool(v bool) Dynamic {
	d := Dynamic{tag: TypeBool}
	if v {
		d.n = 1
	}
	return d
}
func NewChar(r rune) Dynamic           { return Dynamic{tag: TypeChar, n: int64(r)} }
func NewString(s string) Dynamic       { return Dynamic{tag: TypeString, s: s} }
func NewArray(elems []Dynamic) Dynamic { return Dynamic{tag: TypeArray, arr: &elems} }
func NewMap(m map[string]Dynamic) Dynamic {
	if m == nil {
		m = make(map[string]Dynamic)
	}
	return Dynamic{tag: TypeMap, m: m}
}
func NewFnPtrValue(fp *FnPtr) Dynamic { return Dynamic{tag: TypeFnPtr, fp: fp} }

// inner returns the value a read should observe: the cell payload for shared
// values, the receiver itself otherwise.
func (d *Dynamic) inner() *Dynamic {
	if d.cell != nil {
		return &d.cell.value
	}
	return d
}

// TypeID returns the runtime type. Shared values report the type of the
// wrapped payload.
func (d *Dynamic) TypeID() TypeID { return d.inner().tag }

// TypeName returns the diagnostic name of the runtime type.
func (d *Dynamic) TypeName() string { return d.TypeID().Name() }

// IsShared reports whether the value is a shared cell.
func (d *Dynamic) IsShared() bool { return d.cell != nil }

// IsReadOnly reports whether the value is marked constant.
func (d *Dynamic) IsReadOnly() bool { return d.inner().readOnly }

// SetReadOnly marks or unmarks the value as constant.
func (d *Dynamic) SetReadOnly(ro bool) { d.inner().readOnly = ro }

// IsUnit reports whether the value is unit.
func (d *Dynamic) IsUnit() bool { return d.TypeID() == TypeUnit }

// isLocked reports whether the value is a shared cell currently borrowed by
// an enclosing call.
func (d *Dynamic) isLocked() bool { return d.cell != nil && d.cell.locks > 0 }

func (d *Dynamic) lock() {
	if d.cell != nil {
		d.cell.locks++
	}
}

func (d *Dynamic) unlock() {
	if d.cell != nil {
		d.cell.locks--
	}
}

// Clone copies the value. Shared values alias the same cell; every other
// variant is deep-copied.
func (d *Dynamic) Clone() Dynamic {
	if d.cell != nil {
		return Dynamic{tag: d.tag, cell: d.cell}
	}
	out := *d
	switch d.tag {
	case TypeArray:
		elems := make([]Dynamic, len(*d.arr))
		for i := range *d.arr {
			elems[i] = (*d.arr)[i].Clone()
		}
		out.arr = &elems
	case TypeMap:
		out.m = make(map[string]Dynamic, len(d.m))
		for k, v := range d.m {
			out.m[k] = v.Clone()
		}
	case TypeFnPtr:
		fp := *d.fp
		fp.curry = make([]Dynamic, len(d.fp.curry))
		for i := range d.fp.curry {
			fp.curry[i] = d.fp.curry[i].Clone()
		}
		out.fp = &fp
	}
	return out
}

// Flatten returns a plain (non-shared) copy of the value: shared cells are
// deep-copied out of their container, everything else is returned as-is.
func (d *Dynamic) Flatten() Dynamic {
	if d.cell != nil {
		return d.cell.value.Clone()
	}
	return *d
}

// IntoShared wraps the value into a shared cell. A value that is already
// shared is returned unchanged.
func (d *Dynamic) IntoShared() Dynamic {
	if d.cell != nil {
		return *d
	}
	return Dynamic{cell: &SharedCell{value: *d}}
}

// take moves the value out of the slot, leaving unit behind. Arguments not
// in the first position are consumed this way during calls.
func take(d *Dynamic) Dynamic {
	v := *d
	*d = Unit()
	return v
}

// write replaces the payload of the slot, writing through shared cells.
func (d *Dynamic) write(v Dynamic) {
	if d.cell != nil {
		d.cell.value = v
		return
	}
	*d = v
}

// Accessors. Each reads through shared cells and reports whether the value
// has the requested type.

func (d *Dynamic) Int() (int64, bool) {
	in := d.inner()
	return in.n, in.tag == TypeInt
}

func (d *Dynamic) Float() (float64, bool) {
	in := d.inner()
	return in.f, in.tag == TypeFloat
}

func (d *Dynamic) Bool() (bool, bool) {
	in := d.inner()
	return in.n != 0, in.tag == TypeBool
}

func (d *Dynamic) Char() (rune, bool) {
	in := d.inner()
	return rune(in.n), in.tag == TypeChar
}

func (d *Dynamic) Str() (string, bool) {
	in := d.inner()
	return in.s, in.tag == TypeString
}

func (d *Dynamic) Array() ([]Dynamic, bool) {
	in := d.inner()
	if in.tag != TypeArray {
		return nil, false
	}
	return *in.arr, true
}

func (d *Dynamic) Map() (map[string]Dynamic, bool) {
	in := d.inner()
	return in.m, in.tag == TypeMap
}

func (d *Dynamic) FnPtr() (*FnPtr, bool) {
	in := d.inner()
	return in.fp, in.tag == TypeFnPtr
}

// setArray replaces the array payload in place. The backing pointer is
// shared by every non-cloned copy, so the write is visible through all of
// them.
func (d *Dynamic) setArray(arr []Dynamic) {
	*d.inner().arr = arr
}

// SetArrayInPlace replaces the array payload of a mutable receiver.
func (d *Dynamic) SetArrayInPlace(arr []Dynamic) { d.setArray(arr) }

// Equals compares two scalar values of the same type. The second result is
// false when the pair is not comparable by value.
func Equals(a, b *Dynamic) (equal, comparable bool) {
	return strictEquals(a, b)
}

// String renders the value for print output.
func (d *Dynamic) String() string {
	in := d.inner()
	switch in.tag {
	case TypeUnit:
		return ""
	case TypeInt:
		return strconv.FormatInt(in.n, 10)
	case TypeFloat:
		return formatFloat(in.f)
	case TypeBool:
		if in.n != 0 {
			return "true"
		}
		return "false"
	case TypeChar:
		return string(rune(in.n))
	case TypeString:
		return in.s
	case TypeArray:
		var sb strings.Builder
		sb.WriteByte('[')
		for i := range *in.arr {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString((*in.arr)[i].DebugString())
		}
		sb.WriteByte(']')
		return sb.String()
	case TypeMap:
		keys := make([]string, 0, len(in.m))
		for k := range in.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		sb.WriteString("#{")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			v := in.m[k]
			fmt.Fprintf(&sb, "%s: %s", k, v.DebugString())
		}
		sb.WriteByte('}')
		return sb.String()
	case TypeFnPtr:
		return "Fn(" + in.fp.FnName() + ")"
	}
	return "?"
}

// DebugString renders the value for debug output, quoting strings and chars.
func (d *Dynamic) DebugString() string {
	in := d.inner()
	switch in.tag {
	case TypeUnit:
		return "()"
	case TypeString:
		return strconv.Quote(in.s)
	case TypeChar:
		return "'" + string(rune(in.n)) + "'"
	default:
		return d.String()
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// strictEquals compares two scalar values of the same type. Container types
// are compared by registered functions, not here.
func strictEquals(a, b *Dynamic) (bool, bool) {
	x, y := a.inner(), b.inner()
	if x.tag != y.tag {
		return false, false
	}
	switch x.tag {
	case TypeUnit:
		return true, true
	case TypeInt, TypeBool, TypeChar:
		return x.n == y.n, true
	case TypeFloat:
		return x.f == y.f, true
	case TypeString:
		return x.s == y.s, true
	}
	return false, false
}

// dataSizes accumulates (string bytes, array elements, map entries) over the
// value, recursing through containers and shared cells.
func (d *Dynamic) dataSizes() (strLen, arrLen, mapLen int) {
	in := d.inner()
	switch in.tag {
	case TypeString:
		return len(in.s), 0, 0
	case TypeArray:
		arrLen = len(*in.arr)
		for i := range *in.arr {
			s, a, m := (*in.arr)[i].dataSizes()
			strLen += s
			arrLen += a
			mapLen += m
		}
	case TypeMap:
		mapLen = len(in.m)
		for k := range in.m {
			v := in.m[k]
			s, a, m := v.dataSizes()
			strLen += s
			arrLen += a
			mapLen += m
		}
	}
	return
}

package quill

import (
	"fmt"
	"reflect"

	"github.com/quill-lang/quill/internal/evaluator"
)

// Marshaller converts between Go values and Dynamic script values.
type Marshaller struct{}

// NewMarshaller creates a Marshaller.
func NewMarshaller() *Marshaller {
	return &Marshaller{}
}

// ToDynamic converts a Go value to a Dynamic.
func (m *Marshaller) ToDynamic(val any) (Dynamic, error) {
	switch v := val.(type) {
	case nil:
		return Unit(), nil
	case Dynamic:
		return v, nil
	case *Dynamic:
		return v.Clone(), nil
	case *FnPtr:
		return evaluator.NewFnPtrValue(v), nil
	case bool:
		return NewBool(v), nil
	case string:
		return NewString(v), nil
	case float64:
		return NewFloat(v), nil
	case float32:
		return NewFloat(float64(v)), nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewInt(int64(rv.Uint())), nil
	case reflect.Slice, reflect.Array:
		elems := make([]Dynamic, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := m.ToDynamic(rv.Index(i).Interface())
			if err != nil {
				return Unit(), err
			}
			elems[i] = ev
		}
		return NewArray(elems), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Unit(), fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		out := make(map[string]Dynamic, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ev, err := m.ToDynamic(iter.Value().Interface())
			if err != nil {
				return Unit(), err
			}
			out[iter.Key().String()] = ev
		}
		return NewMapValue(out), nil
	default:
		return Unit(), fmt.Errorf("unsupported type for conversion: %T", val)
	}
}

// FromDynamic converts a Dynamic to a Go value. When targetType is nil the
// natural Go representation is returned: int64, float64, bool, rune (for a
// char), string, []any, map[string]any, *FnPtr, or nil for unit.
func (m *Marshaller) FromDynamic(d Dynamic, targetType reflect.Type) (any, error) {
	if targetType != nil && targetType == reflect.TypeOf(Dynamic{}) {
		return d, nil
	}

	switch d.TypeID() {
	case evaluator.TypeUnit:
		return nil, nil

	case evaluator.TypeInt:
		n, _ := d.Int()
		if targetType != nil {
			switch targetType.Kind() {
			case reflect.Int:
				return int(n), nil
			case reflect.Int32:
				return int32(n), nil
			case reflect.Int64:
				return n, nil
			case reflect.Float64:
				return float64(n), nil
			case reflect.Interface:
				return n, nil
			default:
				return nil, fmt.Errorf("cannot convert int to %s", targetType)
			}
		}
		return n, nil

	case evaluator.TypeFloat:
		f, _ := d.Float()
		if targetType != nil {
			switch targetType.Kind() {
			case reflect.Float32:
				return float32(f), nil
			case reflect.Float64, reflect.Interface:
				return f, nil
			default:
				return nil, fmt.Errorf("cannot convert float to %s", targetType)
			}
		}
		return f, nil

	case evaluator.TypeBool:
		b, _ := d.Bool()
		if targetType != nil && targetType.Kind() != reflect.Bool && targetType.Kind() != reflect.Interface {
			return nil, fmt.Errorf("cannot convert bool to %s", targetType)
		}
		return b, nil

	case evaluator.TypeChar:
		c, _ := d.Char()
		if targetType != nil {
			switch targetType.Kind() {
			case reflect.Int32, reflect.Interface:
				return c, nil
			case reflect.String:
				return string(c), nil
			default:
				return nil, fmt.Errorf("cannot convert char to %s", targetType)
			}
		}
		return c, nil

	case evaluator.TypeString:
		s, _ := d.Str()
		if targetType != nil && targetType.Kind() != reflect.String && targetType.Kind() != reflect.Interface {
			return nil, fmt.Errorf("cannot convert string to %s", targetType)
		}
		return s, nil

	case evaluator.TypeArray:
		arr, _ := d.Array()
		elemType := reflect.TypeOf((*any)(nil)).Elem()
		if targetType != nil {
			if targetType.Kind() != reflect.Slice && targetType.Kind() != reflect.Interface {
				return nil, fmt.Errorf("cannot convert array to %s", targetType)
			}
			if targetType.Kind() == reflect.Slice {
				elemType = targetType.Elem()
			}
		}
		slice := reflect.MakeSlice(reflect.SliceOf(elemType), 0, len(arr))
		for i := range arr {
			v, err := m.FromDynamic(arr[i], elemType)
			if err != nil {
				return nil, err
			}
			if v == nil {
				slice = reflect.Append(slice, reflect.Zero(elemType))
			} else {
				slice = reflect.Append(slice, reflect.ValueOf(v))
			}
		}
		return slice.Interface(), nil

	case evaluator.TypeMap:
		mp, _ := d.Map()
		out := make(map[string]any, len(mp))
		for k, v := range mp {
			gv, err := m.FromDynamic(v, nil)
			if err != nil {
				return nil, err
			}
			out[k] = gv
		}
		return out, nil

	case evaluator.TypeFnPtr:
		fp, _ := d.FnPtr()
		return fp, nil

	default:
		return nil, fmt.Errorf("unsupported type for conversion: %s", d.TypeName())
	}
}

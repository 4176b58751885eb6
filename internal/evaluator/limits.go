package evaluator

// Limits bounds the resources a script may consume. A zero value means
// "unlimited" for counters and sizes; call levels and expression depth keep
// non-zero defaults so runaway recursion is always caught.
type Limits struct {
	// MaxCallLevels caps the nesting level of function calls.
	MaxCallLevels int
	// MaxExprDepth caps expression nesting at parse time.
	MaxExprDepth int
	// MaxOperations caps the operation count of one evaluation.
	MaxOperations uint64
	// MaxStringSize caps the total length of strings, in bytes.
	MaxStringSize int
	// MaxArraySize caps the total number of array elements.
	MaxArraySize int
	// MaxMapSize caps the total number of map entries.
	MaxMapSize int
	// MaxModules caps how many modules may be imported.
	MaxModules int
}

const (
	defaultMaxCallLevels = 64
	defaultMaxExprDepth  = 64
)

// DefaultLimits returns the limits a fresh engine starts with.
func DefaultLimits() Limits {
	return Limits{
		MaxCallLevels: defaultMaxCallLevels,
		MaxExprDepth:  defaultMaxExprDepth,
	}
}

func (l Limits) hasDataSizeLimits() bool {
	return l.MaxStringSize > 0 || l.MaxArraySize > 0 || l.MaxMapSize > 0
}

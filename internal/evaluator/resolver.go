package evaluator

import "github.com/quill-lang/quill/internal/token"

// resolveFn resolves a function call to a callable, consulting and feeding
// the resolution cache.
//
// Search order on a cache miss:
//  1. the call-site library (script functions of the active program)
//  2. the engine's global modules (host-registered packages)
//  3. the qualified-function index over the imports stack
//  4. the engine's static sub-modules
//
// When nothing matches, allowDynamic is set and a searched module marks a
// wildcard overload under the base hash, every permutation of argument
// positions is retried with the wildcard type substituted, in
// increasing bitmask order with the most significant bit on the left-most
// parameter. A final two-argument miss falls back to the built-in operator
// tables when an operator token is supplied.
//
// Outcomes, positive and negative alike, are offered to the cache subject to
// the bloom-filter admission rule: a hash is only cached on its second
// sighting.
func (e *Engine) resolveFn(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	opToken token.Type,
	hashBase uint64,
	args []*Dynamic,
	hasArgs bool,
	allowDynamic bool,
) *FnResolutionCacheEntry {
	if hashBase == 0 {
		return nil
	}

	hash := hashBase
	if hasArgs {
		hash = CalcFnHashFull(hashBase, argTypeIDs(args))
	}

	cache := caches.Current()
	if entry, ok := cache.entries[hash]; ok {
		return entry // nil is a cached negative
	}

	cacheKey := hash
	numArgs := 0
	if hasArgs {
		numArgs = len(args)
	}
	maxBitmask := 0 // one above the maximum bitmask; set when wildcards apply
	bitmask := 1    // which parameter positions to replace with the wildcard

	offer := func(entry *FnResolutionCacheEntry) *FnResolutionCacheEntry {
		if cache.filter.IsAbsentAndSet(hash) {
			// First sighting: keep the outcome local.
			return entry
		}
		cache.entries[cacheKey] = entry
		return entry
	}

	for {
		var found *CallableFunction
		var source string

		for _, m := range lib {
			if f := m.GetFn(hash); f != nil {
				found, source = f, m.ID()
				break
			}
		}
		if found == nil {
			for _, m := range e.globalModules {
				if f := m.GetFn(hash); f != nil {
					found, source = f, m.ID()
					break
				}
			}
		}
		if found == nil && hasArgs {
			// Script functions are not exposed through qualified chains.
			if f, src := global.getQualifiedFn(hash); f != nil {
				found, source = f, src
			} else {
				for _, m := range e.staticModules {
					if f := m.GetQualifiedFn(hash); f != nil {
						found, source = f, m.ID()
						break
					}
				}
			}
		}

		if found != nil {
			return offer(&FnResolutionCacheEntry{Func: found, Source: source})
		}

		if allowDynamic && maxBitmask == 0 && numArgs > 0 {
			isDynamic := false
			for _, m := range lib {
				if m.MayContainDynamicFn(hashBase) {
					isDynamic = true
					break
				}
			}
			if !isDynamic {
				for _, m := range e.globalModules {
					if m.MayContainDynamicFn(hashBase) {
						isDynamic = true
						break
					}
				}
			}
			if !isDynamic {
				isDynamic = global.mayContainDynamicFn(hashBase)
			}
			if !isDynamic {
				for _, m := range e.staticModules {
					if m.MayContainDynamicFn(hashBase) {
						isDynamic = true
						break
					}
				}
			}
			if isDynamic {
				n := numArgs
				if n > maxDynamicParams {
					n = maxDynamicParams
				}
				maxBitmask = 1 << n
			}
		}

		// All permutations exhausted.
		if bitmask >= maxBitmask {
			if numArgs != 2 {
				return offer(nil)
			}

			var builtin *CallableFunction
			if opToken != 0 {
				if opToken.IsOpAssign() {
					builtin = getBuiltinOpAssignmentFn(opToken, args[0], args[1])
				} else {
					builtin = getBuiltinBinaryOpFn(opToken, args[0], args[1])
				}
			}
			if builtin != nil {
				return offer(&FnResolutionCacheEntry{Func: builtin})
			}
			return offer(nil)
		}

		// Retry with the next wildcard permutation.
		ids := make([]TypeID, numArgs)
		for i, a := range args {
			mask := 1 << (numArgs - i - 1)
			if bitmask&mask == 0 {
				ids[i] = a.TypeID()
			} else {
				ids[i] = TypeDynamic
			}
		}
		hash = CalcFnHashFull(hashBase, ids)
		bitmask++
	}
}

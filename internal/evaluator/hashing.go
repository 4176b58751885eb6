package evaluator

import (
	"hash"
	"hash/fnv"
)

// altZeroHash is the sentinel a zero hash is remapped to, so that zero can
// mean "no hash" throughout the resolver.
const altZeroHash uint64 = 42

// maxDynamicParams caps how many parameters participate in wildcard
// permutation probing. The left-most parameter maps to the highest mask bit,
// so when a call has more parameters than this, only the trailing ones are
// probed.
const maxDynamicParams = 16

func nonZero(h uint64) uint64 {
	if h == 0 {
		return altZeroHash
	}
	return h
}

func writeByte(h hash.Hash64, b byte) {
	h.Write([]byte{b})
}

func writeInt(h hash.Hash64, v int) {
	var buf [8]byte
	u := uint64(v)
	for i := 0; i < 8; i++ {
		buf[i] = byte(u >> (8 * i))
	}
	h.Write(buf[:])
}

// CalcFnHash computes the non-zero base hash of a function call from its
// optional namespace chain, name and arity.
//
// The first component of the namespace is always skipped: the leading name
// of a qualified path is the import alias, which must not affect identity.
func CalcFnHash(namespace []string, name string, arity int) uint64 {
	h := fnv.New64a()
	count := 0
	for i, ns := range namespace {
		count++
		if i == 0 {
			continue
		}
		h.Write([]byte(ns))
		writeByte(h, 0)
	}
	writeInt(h, count)
	h.Write([]byte(name))
	writeByte(h, 0)
	writeInt(h, arity)
	return nonZero(h.Sum64())
}

// CalcFnHashFull extends a base hash with an ordered sequence of parameter
// type identifiers, producing the typed hash used for native resolution.
func CalcFnHashFull(base uint64, params []TypeID) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(base >> (8 * i))
	}
	h.Write(buf[:])
	for _, t := range params {
		writeByte(h, byte(t))
	}
	writeInt(h, len(params))
	return nonZero(h.Sum64())
}

// argTypeIDs collects the runtime type ids of the argument slots.
func argTypeIDs(args []*Dynamic) []TypeID {
	ids := make([]TypeID, len(args))
	for i, a := range args {
		ids[i] = a.TypeID()
	}
	return ids
}

// FnCallHashes carries the pre-computed hashes of a call site: a script hash
// over the script-style arity and a native hash over the full argument count.
// A zero script hash marks the call as native-only.
type FnCallHashes struct {
	script uint64
	native uint64
}

// HashesFromAll builds a hash set resolvable as either a script or a native
// function.
func HashesFromAll(script, native uint64) FnCallHashes {
	return FnCallHashes{script: script, native: native}
}

// HashesFromNative builds a native-only hash set.
func HashesFromNative(native uint64) FnCallHashes {
	return FnCallHashes{native: native}
}

// HashesFromHash builds a hash set where both views share one hash.
func HashesFromHash(h uint64) FnCallHashes {
	return FnCallHashes{script: h, native: h}
}

// IsNativeOnly reports whether script resolution must be skipped.
func (h FnCallHashes) IsNativeOnly() bool { return h.script == 0 }

// Script returns the script-resolution hash.
func (h FnCallHashes) Script() uint64 { return h.script }

// Native returns the native-resolution hash.
func (h FnCallHashes) Native() uint64 { return h.native }

package evaluator

// argBackup temporarily swaps the first argument slot for a clone, so that a
// pure function called through a mutable reference cannot consume the
// caller's storage. Restoration is mandatory on every exit path; failing to
// restore before the backup goes out of use is a bug and panics.
type argBackup struct {
	orig  *Dynamic
	copy  Dynamic
	armed bool
}

// swapFirst clones args[0] and replaces the slot with a reference to the
// clone.
func (b *argBackup) swapFirst(args []*Dynamic) {
	b.copy = args[0].Clone()
	b.orig = args[0]
	args[0] = &b.copy
	b.armed = true
}

// restoreFirst puts the original reference back into the first slot.
func (b *argBackup) restoreFirst(args []*Dynamic) {
	if !b.armed {
		panic("argBackup: restoreFirst called without a prior swapFirst")
	}
	args[0] = b.orig
	b.orig = nil
	b.armed = false
}

// assertRestored panics if the backup is still armed at scope exit.
func (b *argBackup) assertRestored() {
	if b.armed {
		panic("argBackup: swapped first argument was not restored before scope exit")
	}
}

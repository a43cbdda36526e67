//go:build !kundebug

package kunruntime

// debugChecks enables precondition checks in RunBatch. Build with the
// kundebug tag to turn them on.
const debugChecks = false

//go:build kundebug

package kunruntime

const debugChecks = true

package core

// PartialSuffix is appended to output files while they are being written.
// Completed files are renamed into place; leftovers mark interrupted runs.
const PartialSuffix = ".partial"

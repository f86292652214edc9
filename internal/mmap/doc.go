// Package mmap maps sample files read-only into memory so the local blob
// store can hand their bytes to the sample decoder without a copy.
//
// Unix uses mmap(2) and madvise(2). Windows uses CreateFileMapping and
// MapViewOfFile, where Advise is a no-op.
//
// A Mapping may be read concurrently. Close is idempotent, but callers must
// stop touching Bytes once it returns.
package mmap

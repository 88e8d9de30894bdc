// Package memmap provides cross-platform memory-mapped file I/O.
//
// A mapping places a file's contents (or anonymous zero-filled memory)
// directly into the process address space, so ordinary reads and writes of
// the byte region replace explicit read/write syscalls. POSIX systems are
// served by mmap/msync/munmap, Windows by file-mapping objects and views;
// both sit behind the same Mmap type.
//
// Key features:
//   - Read, ReadWrite and ReadCopy (copy-on-write) protection modes
//   - File-backed mappings over the full file length
//   - Anonymous zero-initialized private mappings
//   - Durable synchronous flush and non-blocking asynchronous flush
//   - Page residency hints and page locking where the OS supports them
//
// Basic usage:
//
//	m, err := memmap.Open("/path/to/data", memmap.ReadWrite)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	copy(m.MutableBytes(), []byte("hello"))
//	if err := m.Flush(); err != nil {
//	    log.Fatal(err)
//	}
//
// Anonymous mappings work anywhere a plain byte buffer would:
//
//	buf, err := memmap.Anonymous(1<<20, memmap.ReadWrite)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer buf.Close()
//
// A mapping exclusively owns its OS resources. The handle may be moved to
// another goroutine, but concurrent byte access must be coordinated by the
// caller, exactly as with any shared byte slice.
package memmap

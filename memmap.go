package memmap

import (
	"io"
	"log/slog"
	"os"
	"runtime"
)

// Protection determines how a memory map may be used. If the map is backed
// by a file, the file is opened with permissions matching the protection:
// read-only for Read, read-write for ReadWrite and ReadCopy (a copy-on-write
// mapping still needs a writable mapping handle even though writes never
// reach the file).
type Protection int

const (
	// Read is a read-only memory map. Writes through the mutable
	// accessors panic.
	Read Protection = iota

	// ReadWrite is a read-write memory map. Writes are reflected in the
	// file after Flush, or when the map is closed.
	ReadWrite

	// ReadCopy is a read-write, copy-on-write memory map. Writes are
	// visible only through this map and are never carried through to the
	// underlying file. Whether changes made to the file after the map is
	// created are visible is unspecified.
	ReadCopy
)

// Writable reports whether the protection permits writing through the map.
func (p Protection) Writable() bool {
	return p == ReadWrite || p == ReadCopy
}

func (p Protection) valid() bool {
	return p == Read || p == ReadWrite || p == ReadCopy
}

func (p Protection) openFlag() int {
	if p.Writable() {
		return os.O_RDWR
	}
	return os.O_RDONLY
}

func (p Protection) String() string {
	switch p {
	case Read:
		return "Read"
	case ReadWrite:
		return "ReadWrite"
	case ReadCopy:
		return "ReadCopy"
	}
	return "Protection(invalid)"
}

// Mmap is a memory-mapped buffer. A file-backed Mmap reads or writes the
// file it was opened over; an anonymous Mmap is zero-initialized swap-backed
// memory usable wherever a byte buffer is needed.
//
// An Mmap exclusively owns one OS mapping and, when file-backed, the open
// file behind it. The handle may be handed to another goroutine, but each of
// Open/Flush/Close must be called from one owning goroutine at a time, and
// overlapping byte access from several goroutines is the caller's to
// serialize.
//
// Changes written to a file-backed map are not guaranteed durable until
// Flush returns, or the map is closed.
type Mmap struct {
	inner *mapping
}

func wrap(inner *mapping) *Mmap {
	m := &Mmap{inner: inner}
	// Leaked handles are unmapped by the runtime so the OS mapping and
	// file are not held until process exit. Explicit Close remains the
	// supported path; the finalizer cannot report failure to anyone, so
	// it logs instead.
	runtime.SetFinalizer(m, (*Mmap).finalize)
	return m
}

func (m *Mmap) finalize() {
	if err := m.inner.close(); err != nil {
		slog.Error("memmap: mapping leaked, close failed during finalization", "error", err)
	}
}

// Open opens a file-backed memory map over the full current length of the
// file at path. The file must exist and must not be empty: mapping a
// zero-length region is rejected with ErrEmptyFile before any OS call.
func Open(path string, prot Protection) (*Mmap, error) {
	if !prot.valid() {
		return nil, ErrBadProtection
	}
	inner, err := openMapping(path, prot)
	if err != nil {
		return nil, err
	}
	return wrap(inner), nil
}

// Anonymous opens an anonymous memory map of length bytes. The memory is
// zero-initialized. length must be greater than zero.
func Anonymous(length int, prot Protection) (*Mmap, error) {
	if !prot.valid() {
		return nil, ErrBadProtection
	}
	if length <= 0 {
		return nil, ErrInvalidLength
	}
	inner, err := anonMapping(length, prot)
	if err != nil {
		return nil, err
	}
	return wrap(inner), nil
}

// Flush synchronously writes outstanding modifications to the backing file.
// When Flush returns nil, all prior writes through a file-backed ReadWrite
// map are durably stored at the OS level. The file's metadata (including the
// modification timestamp) may not be updated. For Read, ReadCopy and
// anonymous maps there is nothing to synchronize and Flush succeeds without
// touching the OS.
func (m *Mmap) Flush() error {
	err := m.inner.sync()
	runtime.KeepAlive(m)
	return err
}

// FlushAsync initiates writing outstanding modifications to the backing
// file but does not wait for the operation to complete. Durability is not
// guaranteed until a later successful Flush or Close.
func (m *Mmap) FlushAsync() error {
	err := m.inner.syncAsync()
	runtime.KeepAlive(m)
	return err
}

// FlushRange synchronously writes the modifications in [offset, offset+length)
// to the backing file. The same no-op rule as Flush applies to maps with
// nothing to synchronize.
func (m *Mmap) FlushRange(offset, length int64) error {
	err := m.inner.syncRange(offset, length)
	runtime.KeepAlive(m)
	return err
}

// Len returns the length of the memory map in bytes, fixed at construction.
func (m *Mmap) Len() int {
	n := len(m.inner.data)
	runtime.KeepAlive(m)
	return n
}

// Protection returns the protection the map was created with.
func (m *Mmap) Protection() Protection {
	prot := m.inner.prot
	runtime.KeepAlive(m)
	return prot
}

// Bytes returns the mapped region as a byte slice of exactly Len() bytes.
// The slice aliases the mapped memory: it becomes invalid when the map is
// closed (nil is returned after Close), and it must not outlive the Mmap
// value itself — a leaked handle is unmapped by the finalizer, taking the
// region the slice points into with it. Keep the Mmap reachable (defer
// Close) for as long as the slice is in use. Writing through the returned
// slice of a Read map is undefined; use MutableBytes so misuse fails loudly.
func (m *Mmap) Bytes() []byte {
	data := m.inner.data
	runtime.KeepAlive(m)
	return data
}

// MutableBytes returns the mapped region for writing. It panics if the map
// was created with Read protection: writing through a read-only mapping is a
// programming error, not a recoverable condition. The lifetime rules of
// Bytes apply.
func (m *Mmap) MutableBytes() []byte {
	if m.inner.prot == Read {
		panic("memmap: write access to read-only mapping")
	}
	data := m.inner.data
	runtime.KeepAlive(m)
	return data
}

// Byte returns the byte at index i. It panics if i is outside [0, Len()).
func (m *Mmap) Byte(i int) byte {
	b := m.inner.data[i]
	runtime.KeepAlive(m)
	return b
}

// SetByte sets the byte at index i. It panics if i is outside [0, Len()) or
// if the map is read-only.
func (m *Mmap) SetByte(i int, v byte) {
	m.MutableBytes()[i] = v
	runtime.KeepAlive(m)
}

// Slice returns the sub-range [i, j) of the mapped region for reading.
// It panics if the range is out of bounds. The lifetime rules of Bytes
// apply.
func (m *Mmap) Slice(i, j int) []byte {
	data := m.inner.data[i:j]
	runtime.KeepAlive(m)
	return data
}

// MutableSlice returns the sub-range [i, j) of the mapped region for
// writing. It panics if the range is out of bounds or the map is read-only.
// The lifetime rules of Bytes apply.
func (m *Mmap) MutableSlice(i, j int) []byte {
	data := m.MutableBytes()[i:j]
	runtime.KeepAlive(m)
	return data
}

// ReadAt reads into p starting at byte offset off, implementing io.ReaderAt
// over the mapped region. A read reaching past Len() returns the bytes that
// exist and io.EOF.
func (m *Mmap) ReadAt(p []byte, off int64) (int, error) {
	data := m.inner.data
	if data == nil {
		return 0, ErrNotMapped
	}
	if off < 0 || off > int64(len(data)) {
		return 0, ErrInvalidRange
	}
	n := copy(p, data[off:])
	runtime.KeepAlive(m)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt copies p into the mapped region starting at byte offset off. A
// buffer longer than Len()-off is truncated: exactly Len()-off bytes are
// written and the count is returned together with io.ErrShortWrite. WriteAt
// never writes outside the mapped region. It panics if the map is read-only.
func (m *Mmap) WriteAt(p []byte, off int64) (int, error) {
	data := m.MutableBytes()
	if data == nil {
		return 0, ErrNotMapped
	}
	if off < 0 || off > int64(len(data)) {
		return 0, ErrInvalidRange
	}
	n := copy(data[off:], p)
	runtime.KeepAlive(m)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Close releases the memory map: for a file-backed ReadWrite map it first
// schedules a best-effort flush, then unmaps the region and closes the owned
// file. Callers needing a durability guarantee must call Flush themselves
// before Close. Close is idempotent; after the first call every byte slice
// previously obtained from the map is invalid.
func (m *Mmap) Close() error {
	runtime.SetFinalizer(m, nil)
	return m.inner.close()
}

//go:build unix

package memmap

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapping is the POSIX memory-mapping backend.
type mapping struct {
	data []byte     // mapped region, nil once closed
	file *os.File   // backing file, nil for anonymous mappings
	prot Protection // access rights fixed at construction
}

// openMapping opens the file at path and maps its full current length.
// The caller has already validated prot.
func openMapping(path string, prot Protection) (*mapping, error) {
	f, err := os.OpenFile(path, prot.openFlag(), 0)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &Error{Op: "stat", Err: err}
	}

	size := fi.Size()
	if size == 0 {
		f.Close()
		return nil, ErrEmptyFile
	}
	if size != int64(int(size)) {
		f.Close()
		return nil, ErrInvalidLength
	}

	flags := unix.MAP_SHARED
	if prot == ReadCopy {
		flags = unix.MAP_PRIVATE
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), protFlags(prot), flags)
	if err != nil {
		f.Close()
		return nil, &Error{Op: "mmap", Err: err}
	}

	return &mapping{data: data, file: f, prot: prot}, nil
}

// anonMapping maps length bytes of private zero-filled memory with no
// backing file. The caller has already validated prot and length.
func anonMapping(length int, prot Protection) (*mapping, error) {
	data, err := unix.Mmap(-1, 0, length, protFlags(prot), unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, &Error{Op: "mmap", Err: err}
	}
	return &mapping{data: data, prot: prot}, nil
}

func protFlags(prot Protection) int {
	if prot.Writable() {
		return unix.PROT_READ | unix.PROT_WRITE
	}
	return unix.PROT_READ
}

// syncable reports whether the mapping has dirty pages the file could ever
// see. ReadCopy and anonymous mappings never propagate writes, so flushing
// them is a successful no-op.
func (m *mapping) syncable() bool {
	return m.file != nil && m.prot == ReadWrite
}

func (m *mapping) sync() error {
	if m.data == nil {
		return ErrNotMapped
	}
	if !m.syncable() {
		return nil
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return &Error{Op: "msync", Err: err}
	}
	return nil
}

func (m *mapping) syncAsync() error {
	if m.data == nil {
		return ErrNotMapped
	}
	if !m.syncable() {
		return nil
	}
	if err := unix.Msync(m.data, unix.MS_ASYNC); err != nil {
		return &Error{Op: "msync", Err: err}
	}
	return nil
}

func (m *mapping) syncRange(offset, length int64) error {
	if m.data == nil {
		return ErrNotMapped
	}
	if offset < 0 || length < 0 || offset+length > int64(len(m.data)) {
		return ErrInvalidRange
	}
	if !m.syncable() || length == 0 {
		return nil
	}
	// msync requires a page-aligned base address; round the start of the
	// range down to the containing page.
	align := offset % int64(unix.Getpagesize())
	if err := unix.Msync(m.data[offset-align:offset+length], unix.MS_SYNC); err != nil {
		return &Error{Op: "msync", Err: err}
	}
	return nil
}

// close unmaps the region and closes the backing file. Safe to call more
// than once; calls after the first return nil.
func (m *mapping) close() error {
	if m.data == nil {
		return nil
	}

	// Best-effort flush so data loss on release is minimized. Durability
	// still requires an explicit sync before close.
	var syncErr error
	if m.syncable() {
		if err := unix.Msync(m.data, unix.MS_ASYNC); err != nil {
			syncErr = &Error{Op: "msync", Err: err}
		}
	}

	err := unix.Munmap(m.data)
	m.data = nil
	if err != nil {
		err = &Error{Op: "munmap", Err: err}
	}

	if m.file != nil {
		closeErr := m.file.Close()
		m.file = nil
		if err == nil && closeErr != nil {
			err = &Error{Op: "close", Err: closeErr}
		}
	}

	if err == nil {
		err = syncErr
	}
	return err
}

//go:build windows

package memmap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// mapping is the Windows memory-mapping backend, built on file-mapping
// objects and views rather than mmap.
type mapping struct {
	data    []byte         // mapped view, nil once closed
	file    *os.File       // backing file, nil for anonymous mappings
	prot    Protection     // access rights fixed at construction
	mapping windows.Handle // file-mapping object backing the view
}

// pageProt returns the CreateFileMapping page protection and the
// MapViewOfFile desired access for a file-backed mapping.
func pageProt(prot Protection) (uint32, uint32) {
	switch prot {
	case ReadWrite:
		return windows.PAGE_READWRITE, windows.FILE_MAP_WRITE
	case ReadCopy:
		return windows.PAGE_WRITECOPY, windows.FILE_MAP_COPY
	}
	return windows.PAGE_READONLY, windows.FILE_MAP_READ
}

func mapView(handle windows.Handle, length int, pageprot, access uint32) ([]byte, windows.Handle, error) {
	maxSizeHigh := uint32(uint64(length) >> 32)
	maxSizeLow := uint32(length)

	m, err := windows.CreateFileMapping(handle, nil, pageprot, maxSizeHigh, maxSizeLow, nil)
	if err != nil {
		return nil, 0, &Error{Op: "CreateFileMapping", Err: err}
	}

	addr, err := windows.MapViewOfFile(m, access, 0, 0, uintptr(length))
	if err != nil {
		windows.CloseHandle(m)
		return nil, 0, &Error{Op: "MapViewOfFile", Err: err}
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length), m, nil
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

	pageprot, access := pageProt(prot)
	data, handle, err := mapView(windows.Handle(f.Fd()), int(size), pageprot, access)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &mapping{data: data, file: f, prot: prot, mapping: handle}, nil
}

// anonMapping maps length bytes of private zero-filled memory backed by the
// system paging file. Pagefile-backed pages are private to the process, so
// ReadCopy needs no copy-on-write view here; it maps like ReadWrite. The
// caller has already validated prot and length.
func anonMapping(length int, prot Protection) (*mapping, error) {
	pageprot := uint32(windows.PAGE_READWRITE)
	access := uint32(windows.FILE_MAP_WRITE)
	if prot == Read {
		access = windows.FILE_MAP_READ
	}

	data, handle, err := mapView(windows.InvalidHandle, length, pageprot, access)
	if err != nil {
		return nil, err
	}

	return &mapping{data: data, prot: prot, mapping: handle}, nil
}

// syncable reports whether the mapping has dirty pages the file could ever
// see. ReadCopy and anonymous mappings never propagate writes, so flushing
// them is a successful no-op.
func (m *mapping) syncable() bool {
	return m.file != nil && m.prot == ReadWrite
}

// sync flushes the view and then the file buffers: FlushViewOfFile alone
// only hands dirty pages to the OS lazy writer, FlushFileBuffers is what
// makes the write durable on the device.
func (m *mapping) sync() error {
	if m.data == nil {
		return ErrNotMapped
	}
	if !m.syncable() {
		return nil
	}
	if err := windows.FlushViewOfFile(m.baseAddr(), uintptr(len(m.data))); err != nil {
		return &Error{Op: "FlushViewOfFile", Err: err}
	}
	if err := windows.FlushFileBuffers(windows.Handle(m.file.Fd())); err != nil {
		return &Error{Op: "FlushFileBuffers", Err: err}
	}
	return nil
}

// syncAsync initiates write-back without waiting for durability: the view
// flush queues the dirty pages, the file buffers are not forced.
func (m *mapping) syncAsync() error {
	if m.data == nil {
		return ErrNotMapped
	}
	if !m.syncable() {
		return nil
	}
	if err := windows.FlushViewOfFile(m.baseAddr(), uintptr(len(m.data))); err != nil {
		return &Error{Op: "FlushViewOfFile", Err: err}
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
	if err := windows.FlushViewOfFile(uintptr(unsafe.Pointer(&m.data[offset])), uintptr(length)); err != nil {
		return &Error{Op: "FlushViewOfFile", Err: err}
	}
	if err := windows.FlushFileBuffers(windows.Handle(m.file.Fd())); err != nil {
		return &Error{Op: "FlushFileBuffers", Err: err}
	}
	return nil
}

func (m *mapping) baseAddr() uintptr {
	return uintptr(unsafe.Pointer(&m.data[0]))
}

// close unmaps the view, closes the file-mapping object and the backing
// file. Safe to call more than once; calls after the first return nil.
func (m *mapping) close() error {
	if m.data == nil {
		return nil
	}

	var syncErr error
	if m.syncable() {
		if err := windows.FlushViewOfFile(m.baseAddr(), uintptr(len(m.data))); err != nil {
			syncErr = &Error{Op: "FlushViewOfFile", Err: err}
		}
	}

	addr := m.baseAddr()
	m.data = nil

	var err error
	if unmapErr := windows.UnmapViewOfFile(addr); unmapErr != nil {
		err = &Error{Op: "UnmapViewOfFile", Err: unmapErr}
	}

	if m.mapping != 0 {
		closeErr := windows.CloseHandle(m.mapping)
		m.mapping = 0
		if err == nil && closeErr != nil {
			err = &Error{Op: "CloseHandle", Err: closeErr}
		}
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

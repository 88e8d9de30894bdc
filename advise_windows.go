//go:build windows

package memmap

import (
	"runtime"

	"golang.org/x/sys/windows"
)

// Windows has no madvise; the hints are accepted and ignored so callers can
// use them unconditionally across platforms.

func (m *mapping) advise() error {
	if m.data == nil {
		return ErrNotMapped
	}
	return nil
}

// AdviseSequential hints that pages will be accessed sequentially.
func (m *Mmap) AdviseSequential() error {
	err := m.inner.advise()
	runtime.KeepAlive(m)
	return err
}

// AdviseRandom hints that pages will be accessed randomly.
func (m *Mmap) AdviseRandom() error {
	err := m.inner.advise()
	runtime.KeepAlive(m)
	return err
}

// AdviseWillNeed hints that pages will be needed soon.
func (m *Mmap) AdviseWillNeed() error {
	err := m.inner.advise()
	runtime.KeepAlive(m)
	return err
}

// AdviseDontNeed hints that pages won't be needed soon.
func (m *Mmap) AdviseDontNeed() error {
	err := m.inner.advise()
	runtime.KeepAlive(m)
	return err
}

// Lock locks the mapped pages into memory, preventing swapping.
func (m *Mmap) Lock() error {
	err := m.inner.lockPages()
	runtime.KeepAlive(m)
	return err
}

// Unlock unlocks previously locked pages.
func (m *Mmap) Unlock() error {
	err := m.inner.unlockPages()
	runtime.KeepAlive(m)
	return err
}

func (m *mapping) lockPages() error {
	if m.data == nil {
		return ErrNotMapped
	}
	if err := windows.VirtualLock(m.baseAddr(), uintptr(len(m.data))); err != nil {
		return &Error{Op: "VirtualLock", Err: err}
	}
	return nil
}

func (m *mapping) unlockPages() error {
	if m.data == nil {
		return ErrNotMapped
	}
	if err := windows.VirtualUnlock(m.baseAddr(), uintptr(len(m.data))); err != nil {
		return &Error{Op: "VirtualUnlock", Err: err}
	}
	return nil
}

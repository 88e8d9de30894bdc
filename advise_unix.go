//go:build unix

package memmap

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func (m *mapping) advise(advice int) error {
	if m.data == nil {
		return ErrNotMapped
	}
	if err := unix.Madvise(m.data, advice); err != nil {
		return &Error{Op: "madvise", Err: err}
	}
	return nil
}

// AdviseSequential hints that pages will be accessed sequentially.
func (m *Mmap) AdviseSequential() error {
	err := m.inner.advise(unix.MADV_SEQUENTIAL)
	runtime.KeepAlive(m)
	return err
}

// AdviseRandom hints that pages will be accessed randomly.
func (m *Mmap) AdviseRandom() error {
	err := m.inner.advise(unix.MADV_RANDOM)
	runtime.KeepAlive(m)
	return err
}

// AdviseWillNeed hints that pages will be needed soon.
func (m *Mmap) AdviseWillNeed() error {
	err := m.inner.advise(unix.MADV_WILLNEED)
	runtime.KeepAlive(m)
	return err
}

// AdviseDontNeed hints that pages won't be needed soon.
func (m *Mmap) AdviseDontNeed() error {
	err := m.inner.advise(unix.MADV_DONTNEED)
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
	if err := unix.Mlock(m.data); err != nil {
		return &Error{Op: "mlock", Err: err}
	}
	return nil
}

func (m *mapping) unlockPages() error {
	if m.data == nil {
		return ErrNotMapped
	}
	if err := unix.Munlock(m.data); err != nil {
		return &Error{Op: "munlock", Err: err}
	}
	return nil
}

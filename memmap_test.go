package memmap

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	expmmap "golang.org/x/exp/mmap"
)

func TestAnonymousZeroInitialized(t *testing.T) {
	for _, n := range []int{1, 128, 4096, 1 << 20} {
		m, err := Anonymous(n, ReadWrite)
		require.NoError(t, err)
		require.Equal(t, n, m.Len())

		for i, b := range m.Bytes() {
			if b != 0 {
				t.Fatalf("byte %d of fresh anonymous mapping is %d, want 0", i, b)
			}
		}
		require.NoError(t, m.Close())
	}
}

func TestAnonymousInvalidLength(t *testing.T) {
	for _, prot := range []Protection{Read, ReadWrite, ReadCopy} {
		_, err := Anonymous(0, prot)
		assert.ErrorIs(t, err, ErrInvalidLength)

		_, err = Anonymous(-1, prot)
		assert.ErrorIs(t, err, ErrInvalidLength)
	}
}

func TestAnonymousReadOnly(t *testing.T) {
	// Degenerate but legal: a read-only zero region.
	m, err := Anonymous(128, Read)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, make([]byte, 128), m.Bytes())
	assert.NoError(t, m.Flush())
	assert.Panics(t, func() { m.MutableBytes() })
}

func TestAnonymousWriteReadBack(t *testing.T) {
	m, err := Anonymous(128, ReadWrite)
	require.NoError(t, err)
	defer m.Close()

	incr := make([]byte, 128)
	for i := range incr {
		incr[i] = byte(i)
	}
	n, err := m.WriteAt(incr, 0)
	require.NoError(t, err)
	require.Equal(t, 128, n)
	assert.Equal(t, incr, m.Bytes())

	// Flushing an anonymous mapping is a successful no-op.
	assert.NoError(t, m.Flush())
	assert.NoError(t, m.FlushAsync())
}

func TestWriteAtTruncates(t *testing.T) {
	m, err := Anonymous(128, ReadWrite)
	require.NoError(t, err)
	defer m.Close()

	over := make([]byte, 129)
	for i := range over {
		over[i] = byte(i)
	}

	n, err := m.WriteAt(over, 0)
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, 128, n)
	assert.Equal(t, over[:128], m.Bytes())

	n, err = m.WriteAt(over, 100)
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, 28, n)

	// Offsets outside the region never write anything.
	n, err = m.WriteAt(over, 129)
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Zero(t, n)

	n, err = m.WriteAt(over, -1)
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Zero(t, n)
}

func TestReadAt(t *testing.T) {
	m, err := Anonymous(16, ReadWrite)
	require.NoError(t, err)
	defer m.Close()

	copy(m.MutableBytes(), []byte("0123456789abcdef"))

	buf := make([]byte, 6)
	n, err := m.ReadAt(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte("abcdef"), buf)

	n, err = m.ReadAt(buf, 12)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("cdef"), buf[:n])

	_, err = m.ReadAt(buf, 17)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.dat")
	orig := make([]byte, 128)
	for i := range orig {
		orig[i] = 0xAA
	}
	require.NoError(t, os.WriteFile(path, orig, 0644))

	m, err := Open(path, ReadWrite)
	require.NoError(t, err)
	require.Equal(t, 128, m.Len())

	payload := []byte("abc123")
	n, err := m.WriteAt(payload, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, m.Flush())
	require.NoError(t, m.Close())

	// Independent read from outside the mapping: payload first, original
	// trailing bytes untouched.
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got[:len(payload)])
	assert.Equal(t, orig[len(payload):], got[len(payload):])
}

func TestIncrementScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incr.dat")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0644))

	m, err := Open(path, ReadWrite)
	require.NoError(t, err)
	require.Equal(t, 128, m.Len())

	for _, b := range m.Bytes() {
		require.Zero(t, b)
	}

	data := m.MutableBytes()
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, m.Flush())
	require.NoError(t, m.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 128)
	for k, b := range got {
		if b != byte(k) {
			t.Fatalf("byte %d = %d after flush, want %d", k, b, byte(k))
		}
	}
}

func TestFlushVisibleToIndependentMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visible.dat")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0644))

	m, err := Open(path, ReadWrite)
	require.NoError(t, err)
	copy(m.MutableBytes(), []byte("shared view"))
	require.NoError(t, m.Flush())
	require.NoError(t, m.Close())

	// Read back through a second, independent mapping implementation.
	r, err := expmmap.Open(path)
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, len("shared view"))
	_, err = r.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared view"), buf)
}

func TestReadCopyIsolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cow.dat")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0644))

	m, err := Open(path, ReadCopy)
	require.NoError(t, err)

	payload := []byte("abc123")
	n, err := m.WriteAt(payload, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	// The write is visible through this mapping.
	assert.Equal(t, payload, m.Slice(0, len(payload)))

	// Flush is a successful no-op and must not leak the write to the file.
	require.NoError(t, m.Flush())
	require.NoError(t, m.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 128), got, "copy-on-write write reached the file")

	// A fresh Read mapping sees the original contents too.
	m2, err := Open(path, Read)
	require.NoError(t, err)
	defer m2.Close()
	assert.Equal(t, make([]byte, 128), m2.Bytes())
}

func TestIndexAccess(t *testing.T) {
	m, err := Anonymous(128, ReadWrite)
	require.NoError(t, err)
	defer m.Close()

	m.SetByte(0, 42)
	assert.EqualValues(t, 42, m.Byte(0))

	assert.Panics(t, func() { m.Byte(128) })
	assert.Panics(t, func() { m.SetByte(128, 1) })
	assert.Panics(t, func() { m.Slice(0, 129) })
	assert.Panics(t, func() { m.MutableSlice(120, 119) })
}

func TestReadOnlyWritePanics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.dat")
	require.NoError(t, os.WriteFile(path, []byte("immutable"), 0644))

	m, err := Open(path, Read)
	require.NoError(t, err)
	defer m.Close()

	assert.Panics(t, func() { m.MutableBytes() })
	assert.Panics(t, func() { m.SetByte(0, 1) })
	assert.Panics(t, func() { m.MutableSlice(0, 1) })
	assert.Panics(t, func() { m.WriteAt([]byte("x"), 0) })
}

func TestLeakedHandleFlushSurvivesGC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leak.dat")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0644))

	// Each handle is deliberately leaked with Flush as its last use: the
	// method in flight must keep the handle live on its own, and forced
	// collections let the finalizer reclaim the leaked mappings.
	for i := 0; i < 64; i++ {
		m, err := Open(path, ReadWrite)
		require.NoError(t, err)
		m.SetByte(0, byte(i))
		require.NoError(t, m.Flush())
		runtime.GC()
	}
}

func TestHandleTransfer(t *testing.T) {
	m, err := Anonymous(128, ReadWrite)
	require.NoError(t, err)

	copy(m.MutableBytes(), []byte("foobar"))

	// Ownership moves to another goroutine, which flushes and closes.
	done := make(chan error, 1)
	go func() {
		if err := m.Flush(); err != nil {
			done <- err
			return
		}
		done <- m.Close()
	}()
	require.NoError(t, <-done)
}

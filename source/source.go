// Package source provides random-access views over a byte sequence. Every
// out-of-range read surfaces as a short read.
package source

import (
	"bytes"
	"io"
	"math"
)

// Source is a view over an io.ReaderAt. It carries a cursor, so it is not
// safe for concurrent use.
type Source struct {
	r       io.ReaderAt
	base    uint64
	limit   uint64
	bounded bool
	next    uint64
}

// New wraps r. The Source does not take ownership of r.
func New(r io.ReaderAt) *Source {
	return &Source{r: r}
}

// FromBytes returns a Source over an in-memory buffer.
func FromBytes(b []byte) *Source {
	return New(bytes.NewReader(b))
}

func (s *Source) Sub(off uint64) *Source {
	child := &Source{r: s.r}
	base, ok := add(s.base, off)
	if !ok {
		return &Source{r: s.r, bounded: true}
	}
	child.base = base
	if s.bounded {
		child.bounded = true
		if off < s.limit {
			child.limit = s.limit - off
		}
	}
	return child
}

// Window returns a view over [off, off+n) of s.
func (s *Source) Window(off, n uint64) *Source {
	child := s.Sub(off)
	if !child.bounded || n < child.limit {
		child.limit = n
	}
	child.bounded = true
	return child
}

// ReadExact reports whether all of buf was filled from off.
func (s *Source) ReadExact(off uint64, buf []byte) bool {
	return s.ReadSome(off, buf) == len(buf)
}

// ReadSome reads up to len(buf) bytes at off and moves the cursor past them.
func (s *Source) ReadSome(off uint64, buf []byte) int {
	n := s.readAt(off, buf)
	s.next = off + uint64(n)
	return n
}

// ReadNext reads up to len(buf) bytes at the cursor.
func (s *Source) ReadNext(buf []byte) int {
	return s.ReadSome(s.next, buf)
}

func (s *Source) Cursor() uint64 {
	return s.next
}

// Bound returns the length of a bounded view.
func (s *Source) Bound() (uint64, bool) {
	return s.limit, s.bounded
}

func (s *Source) readAt(off uint64, buf []byte) int {
	if s.r == nil || len(buf) == 0 {
		return 0
	}
	want := uint64(len(buf))
	if s.bounded {
		if off >= s.limit {
			return 0
		}
		if avail := s.limit - off; want > avail {
			want = avail
		}
	}
	abs, ok := add(s.base, off)
	if !ok {
		return 0
	}
	if end, ok := add(abs, want); !ok || end > math.MaxInt64 {
		return 0
	}
	n, _ := s.r.ReadAt(buf[:want], int64(abs))
	if n < 0 {
		return 0
	}
	return n
}

func add(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

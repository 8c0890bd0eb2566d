package core

import "io"

// RangeBounds resolves ReadRange offset/length semantics against a known
// content size: negative length reads to the end, negative offset
// addresses the suffix. Out-of-bounds ranges clamp instead of failing.
// The returned half-open interval satisfies 0 <= start <= end <= size.
func RangeBounds(size, offset, length int64) (start, end int64) {
	if offset < 0 {
		start = size + offset
		if start < 0 {
			start = 0
		}
		return start, size
	}
	if offset >= size {
		return size, size
	}
	if length < 0 {
		return offset, size
	}
	end = offset + length
	if end > size {
		end = size
	}
	return offset, end
}

// RangeSlice applies RangeBounds to in-memory content.
func RangeSlice(data []byte, offset, length int64) []byte {
	start, end := RangeBounds(int64(len(data)), offset, length)
	return data[start:end]
}

type nopReadSeekCloser struct{ io.ReadSeeker }

func (nopReadSeekCloser) Close() error { return nil }

// NopReadSeekCloser adapts an io.ReadSeeker with a no-op Close.
func NopReadSeekCloser(r io.ReadSeeker) io.ReadSeekCloser {
	return nopReadSeekCloser{r}
}

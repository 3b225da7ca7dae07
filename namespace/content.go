package namespace

import (
	"github.com/dendrascience/dockerfs/util"
)

// ReadAt returns up to size bytes of the entry's contents starting at
// offset, clamped to the contents' bounds. Reading at or past the end yields
// an empty slice. Inventory entries have no contents and fail with
// util.ErrUnsupported.
func ReadAt(e Entry, size int, offset int64) ([]byte, error) {
	if e.Contents == nil {
		return nil, util.ErrUnsupported
	}
	n := int64(len(e.Contents))
	if offset < 0 {
		offset = 0
	}
	if offset >= n || size <= 0 {
		return []byte{}, nil
	}
	end := offset + int64(size)
	if end > n {
		end = n
	}
	return e.Contents[offset:end], nil
}

package engine

import "github.com/linxGnu/grocksdb"

// fixedSuffixTransform strips the trailing n bytes of a key; it is installed
// as the write CF's prefix extractor for prefix-bloom purposes. The write
// CF's keys carry an MVCC
// timestamp in their last 8 bytes; stripping it groups all versions of the
// same user key under one transformed prefix.
type fixedSuffixTransform struct {
	n int
}

func (t fixedSuffixTransform) Name() string { return "stratakv.FixedSuffixTransform" }

func (t fixedSuffixTransform) Transform(src []byte) []byte {
	if len(src) < t.n {
		return src
	}
	return src[:len(src)-t.n]
}

func (t fixedSuffixTransform) InDomain(src []byte) bool {
	return len(src) >= t.n
}

func (t fixedSuffixTransform) InRange(src []byte) bool {
	return len(src) == t.n
}

func newFixedSuffixTransform(n int) grocksdb.SliceTransform {
	return grocksdb.NewSliceTransform(fixedSuffixTransform{n: n})
}

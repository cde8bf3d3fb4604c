package relation

import "strconv"

// Tuple is a block tuple: one group id per position of the owning
// relation's domain list.
type Tuple []int64

// key encodes a tuple into a string suitable for use as a map key. Small
// arities (the common case: binary and ternary relations) are encoded
// without an intermediate []byte allocation per element by writing
// directly into a preallocated buffer; higher arities fall back to the
// same scheme via strconv.AppendInt, so there is a single code path for
// all arities, just a sized-up buffer for the rare wide relation. This is
// the "arity optimization" the inference core calls out as a performance,
// not correctness, concern: it avoids per-call heap churn in the common
// 2-4 ary case without introducing a second cell-table implementation.
func key(t Tuple) string {
	buf := make([]byte, 0, 8*len(t))
	for i, g := range t {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, g, 10)
	}
	return string(buf)
}

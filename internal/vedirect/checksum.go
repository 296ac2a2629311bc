package vedirect

// checksum is the per-frame modulo-256 accumulator. Every byte of a frame,
// delimiters included, is folded in once; a valid frame sums to zero.
type checksum struct {
	sum    byte
	sealed bool // checksum byte already folded in
}

func (c *checksum) add(b byte) { c.sum += b }

// seal folds in the frame's checksum byte. Only one is allowed per frame.
func (c *checksum) seal(b byte) error {
	if c.sealed {
		return ErrDuplicateChecksum
	}
	c.sum += b
	c.sealed = true
	return nil
}

func (c *checksum) valid() bool { return c.sum == 0 }

func (c *checksum) reset() { *c = checksum{} }

// Sum returns the modulo-256 sum of p.
func Sum(p []byte) byte {
	var s byte
	for _, b := range p {
		s += b
	}
	return s
}

// ChecksumByte returns the byte that, appended to p, makes the whole
// sequence sum to zero modulo 256.
func ChecksumByte(p []byte) byte {
	return 0 - Sum(p)
}

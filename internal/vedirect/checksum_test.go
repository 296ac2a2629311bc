package vedirect

import (
	"errors"
	"testing"
)

func TestChecksumByteZeroesFrame(t *testing.T) {
	frames := [][]byte{
		[]byte("V\t12800\r\nSOC\t870\r\nChecksum\t"),
		[]byte("\r\nPID\t0x203\r\nV\t26201\r\nChecksum\t"),
		{},
	}
	for _, frame := range frames {
		full := append(append([]byte(nil), frame...), ChecksumByte(frame))
		if got := Sum(full); got != 0 {
			t.Errorf("Sum(%q) = %d, want 0", full, got)
		}
	}
}

func TestChecksumAccumulator(t *testing.T) {
	var c checksum
	for _, b := range []byte("V\t1\r\nChecksum\t") {
		c.add(b)
	}
	if c.valid() {
		t.Fatal("checksum valid before the checksum byte")
	}
	if err := c.seal(ChecksumByte([]byte("V\t1\r\nChecksum\t"))); err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !c.valid() {
		t.Fatalf("sum = %d after seal, want 0", c.sum)
	}
	if err := c.seal(0); !errors.Is(err, ErrDuplicateChecksum) {
		t.Fatalf("second seal = %v, want ErrDuplicateChecksum", err)
	}

	c.reset()
	if c.sum != 0 || c.sealed {
		t.Fatalf("reset left %+v", c)
	}
	if err := c.seal(0); err != nil {
		t.Fatalf("seal after reset: %v", err)
	}
}

func TestEncode(t *testing.T) {
	frame := Encode(RawField{"PID", "0x203"}, RawField{"V", "12800"})
	want := "\r\nPID\t0x203\r\nV\t12800\r\nChecksum\t"
	if string(frame[:len(frame)-1]) != want {
		t.Fatalf("Encode = %q, want prefix %q", frame, want)
	}
	if Sum(frame) != 0 {
		t.Fatalf("encoded frame sums to %d", Sum(frame))
	}
}

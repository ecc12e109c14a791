package near

import (
	"bytes"
	"encoding/binary"
)

// borshWriter accumulates the narrow subset of Borsh encoding this package
// needs to build a NEAR transfer transaction: strings, fixed-size integers
// and raw byte arrays. NEAR's wire format requires this exact layout; there
// is no general-purpose Borsh library in this module's dependency set.
type borshWriter struct {
	buf bytes.Buffer
}

func (w *borshWriter) writeString(s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	w.buf.Write(lenBuf[:])
	w.buf.WriteString(s)
}

func (w *borshWriter) writeU8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *borshWriter) writeU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *borshWriter) writeU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// writeU128 encodes a yoctoNEAR amount as 16 little-endian bytes, zero
// padding above the supplied big-endian magnitude.
func (w *borshWriter) writeU128(magnitudeBE []byte) {
	var b [16]byte
	n := len(magnitudeBE)
	if n > 16 {
		n = 16
	}
	for i := 0; i < n; i++ {
		b[i] = magnitudeBE[n-1-i]
	}
	w.buf.Write(b[:])
}

func (w *borshWriter) writeRaw(b []byte) {
	w.buf.Write(b)
}

func (w *borshWriter) Bytes() []byte { return w.buf.Bytes() }

const (
	keyTypeED25519 = 0

	actionTransfer = 3
)

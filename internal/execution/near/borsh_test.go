package near

import "testing"

func TestBorshWriterString(t *testing.T) {
	w := borshWriter{}
	w.writeString("alice.near")
	got := w.Bytes()

	if len(got) != 4+len("alice.near") {
		t.Fatalf("unexpected length %d", len(got))
	}
	if got[0] != 10 || got[1] != 0 || got[2] != 0 || got[3] != 0 {
		t.Fatalf("expected little-endian length prefix 10, got %v", got[:4])
	}
	if string(got[4:]) != "alice.near" {
		t.Fatalf("expected alice.near, got %q", got[4:])
	}
}

func TestBorshWriterU8(t *testing.T) {
	w := borshWriter{}
	w.writeU8(7)
	if got := w.Bytes(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected [7], got %v", got)
	}
}

func TestBorshWriterU32LittleEndian(t *testing.T) {
	w := borshWriter{}
	w.writeU32(1)
	want := []byte{1, 0, 0, 0}
	got := w.Bytes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestBorshWriterU64LittleEndian(t *testing.T) {
	w := borshWriter{}
	w.writeU64(256)
	want := []byte{0, 1, 0, 0, 0, 0, 0, 0}
	got := w.Bytes()
	if len(got) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestBorshWriterU128FromBigEndianMagnitude(t *testing.T) {
	w := borshWriter{}
	// Big-endian magnitude 0x0102 should become little-endian [2, 1, 0, ..., 0].
	w.writeU128([]byte{0x01, 0x02})
	got := w.Bytes()
	if len(got) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(got))
	}
	if got[0] != 0x02 || got[1] != 0x01 {
		t.Fatalf("expected [2 1 0...], got %v", got)
	}
	for i := 2; i < 16; i++ {
		if got[i] != 0 {
			t.Fatalf("expected zero padding beyond magnitude, got %v", got)
		}
	}
}

func TestBorshWriterU128TruncatesOversizedMagnitude(t *testing.T) {
	w := borshWriter{}
	oversized := make([]byte, 20)
	for i := range oversized {
		oversized[i] = byte(i + 1)
	}
	w.writeU128(oversized)
	if got := w.Bytes(); len(got) != 16 {
		t.Fatalf("expected output clamped to 16 bytes, got %d", len(got))
	}
}

func TestBorshWriterRawAndCompose(t *testing.T) {
	w := borshWriter{}
	w.writeRaw([]byte{0xAA, 0xBB})
	w.writeU8(1)
	got := w.Bytes()
	want := []byte{0xAA, 0xBB, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

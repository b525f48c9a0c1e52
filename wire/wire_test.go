package wire

import "testing"

func TestVarIntRoundTrip(t *testing.T) {
	cases := []int32{0, 1, 127, 128, 300, -1, -2147483648, 2147483647}
	for _, v := range cases {
		buf := PutVarInt(nil, v)
		if len(buf) != SizeVarInt(v) {
			t.Fatalf("SizeVarInt(%d) = %d, encoded length %d", v, SizeVarInt(v), len(buf))
		}
		got, n, err := ReadVarInt(buf)
		if err != nil {
			t.Fatalf("ReadVarInt(%d): %v", v, err)
		}
		if n != len(buf) || got != v {
			t.Fatalf("round trip %d -> %v (n=%d, want n=%d)", v, got, n, len(buf))
		}
	}
}

func TestReadVarIntRejectsTruncatedStream(t *testing.T) {
	buf := PutVarInt(nil, 300)
	if _, _, err := ReadVarInt(buf[:1]); err == nil {
		t.Fatalf("expected truncated varint to error")
	}
}

func TestReadVarIntRejectsRunawayEncoding(t *testing.T) {
	adversarial := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80}
	if _, _, err := ReadVarInt(adversarial); err == nil {
		t.Fatalf("expected a too-long varint to error")
	}
}

func TestPositionRoundTrip(t *testing.T) {
	cases := [][3]int32{
		{0, 0, 0},
		{33554431, 2047, 33554431},
		{-33554432, -2048, -33554432},
		{100, 64, -200},
	}
	for _, c := range cases {
		packed := PackPosition(c[0], c[1], c[2])
		x, y, z := UnpackPosition(packed)
		if x != c[0] || y != c[1] || z != c[2] {
			t.Fatalf("round trip %v -> (%d,%d,%d)", c, x, y, z)
		}
	}
}

func TestPutStringRejectsOversize(t *testing.T) {
	huge := make([]byte, MaxStringBytes+1)
	for i := range huge {
		huge[i] = 'a'
	}
	if _, err := PutString(nil, string(huge)); err == nil {
		t.Fatalf("expected oversize string to be rejected")
	}
}

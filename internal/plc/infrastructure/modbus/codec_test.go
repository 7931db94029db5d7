package modbus

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeRegistersDropsPartialValue(t *testing.T) {
	def := TagDefinition{Name: "Counter", Type: TypeUint32}
	data := []byte{0x00, 0x01, 0x00, 0x02, 0xAA, 0xBB}

	values := decodeRegisters(def, data)
	if len(values) != 1 {
		t.Fatalf("expected 1 value, got %d", len(values))
	}
	if values[0] != int64(0x00010002) {
		t.Fatalf("unexpected value: %v", values[0])
	}
}

func TestDecodeSignedAndSwapped(t *testing.T) {
	got := decodeRegisters(TagDefinition{Type: TypeInt16}, []byte{0xFF, 0xFE})
	if got[0] != int64(-2) {
		t.Fatalf("int16 decode: %v", got[0])
	}

	bits := math.Float32bits(12.5)
	hi, lo := byte(bits>>24), byte(bits>>16)
	hi2, lo2 := byte(bits>>8), byte(bits)
	swapped := []byte{hi2, lo2, hi, lo}
	got = decodeRegisters(TagDefinition{Type: TypeFloat32, WordSwap: true}, swapped)
	if got[0] != float64(12.5) {
		t.Fatalf("float32 swapped decode: %v", got[0])
	}
}

func TestDecodeAppliesScale(t *testing.T) {
	got := decodeRegisters(TagDefinition{Type: TypeUint16, Scale: 0.5}, []byte{0x00, 0x0A})
	if got[0] != float64(5) {
		t.Fatalf("scaled value: %v", got[0])
	}
}

func TestDecodeBits(t *testing.T) {
	values := decodeBits([]byte{0x05}, 4)
	want := []bool{true, false, true, false}
	for i, w := range want {
		if values[i] != w {
			t.Fatalf("bit %d: got %v want %v", i, values[i], w)
		}
	}
	if got := decodeBits([]byte{0x01}, 12); len(got) != 8 {
		t.Fatalf("expected truncation to 8 bits, got %d", len(got))
	}
}

func TestLoadTagMapDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	doc := "tags:\n  - name: Speed\n    address: 10\n  - name: Running\n    area: coil\n    address: 3\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := LoadTagMap(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Tags[0].Area != AreaHolding || m.Tags[0].Type != TypeUint16 {
		t.Fatalf("unexpected defaults: %+v", m.Tags[0])
	}
	if m.Tags[1].Type != TypeBool {
		t.Fatalf("coil should decode as bool: %+v", m.Tags[1])
	}
}

func TestTagMapRejectsDuplicates(t *testing.T) {
	m := TagMap{Tags: []TagDefinition{{Name: "A"}, {Name: "A"}}}
	if err := m.Validate(); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestNormalizeAddress(t *testing.T) {
	got, err := normalizeAddress("192.168.1.10")
	if err != nil || got != "192.168.1.10:502" {
		t.Fatalf("got %q err=%v", got, err)
	}
	got, err = normalizeAddress("plc.local:1502")
	if err != nil || got != "plc.local:1502" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if _, err := normalizeAddress("  "); err == nil {
		t.Fatalf("expected empty address error")
	}
}

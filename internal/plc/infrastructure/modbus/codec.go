package modbus

import (
	"encoding/binary"
	"math"
)

// decodeRegisters turns a register read response into whole values.
// A trailing partial value is dropped.
func decodeRegisters(def TagDefinition, data []byte) []any {
	width := def.Type.registers() * 2
	count := len(data) / width
	values := make([]any, 0, count)
	for i := 0; i < count; i++ {
		chunk := data[i*width : (i+1)*width]
		values = append(values, scale(def, decodeOne(def, chunk)))
	}
	return values
}

func decodeOne(def TagDefinition, chunk []byte) any {
	switch def.Type {
	case TypeInt16:
		return int64(int16(binary.BigEndian.Uint16(chunk)))
	case TypeUint16:
		return int64(binary.BigEndian.Uint16(chunk))
	}
	hi := binary.BigEndian.Uint16(chunk[0:2])
	lo := binary.BigEndian.Uint16(chunk[2:4])
	if def.WordSwap {
		hi, lo = lo, hi
	}
	raw := uint32(hi)<<16 | uint32(lo)
	switch def.Type {
	case TypeInt32:
		return int64(int32(raw))
	case TypeUint32:
		return int64(raw)
	default:
		return float64(math.Float32frombits(raw))
	}
}

func scale(def TagDefinition, v any) any {
	if def.Scale == 0 || def.Scale == 1 {
		return v
	}
	switch n := v.(type) {
	case int64:
		return float64(n) * def.Scale
	case float64:
		return n * def.Scale
	default:
		return v
	}
}

// decodeBits unpacks coil or discrete input status, LSB first.
func decodeBits(data []byte, quantity int) []any {
	if max := len(data) * 8; quantity > max {
		quantity = max
	}
	values := make([]any, quantity)
	for i := 0; i < quantity; i++ {
		values[i] = data[i/8]&(1<<(uint(i)%8)) != 0
	}
	return values
}

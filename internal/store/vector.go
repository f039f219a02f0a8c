package store

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
)

// Vector is an embedding persisted as a little-endian float32 blob.
type Vector []float32

// GormDataType maps Vector to the dialect's binary type.
func (Vector) GormDataType() string { return "bytes" }

// Value implements driver.Valuer.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf, nil
}

// Scan implements sql.Scanner.
func (v *Vector) Scan(src any) error {
	var buf []byte
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		buf = s
	case string:
		buf = []byte(s)
	default:
		return fmt.Errorf("store: cannot scan %T into Vector", src)
	}
	if len(buf)%4 != 0 {
		return fmt.Errorf("store: vector blob length %d is not a multiple of 4", len(buf))
	}
	out := make(Vector, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	*v = out
	return nil
}

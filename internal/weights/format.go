// Package weights implements the checkpoint container for backbone
// parameters: a small binary format with a tensor table and an aligned
// float32 payload, read through a memory map, plus the axis-order conversion
// for convolution kernels stored by external training frameworks.
package weights

import "encoding/binary"

// File layout, all little-endian:
//
//	uint32  magic   "VXT1"
//	uint32  version
//	uint32  tensor count
//	per tensor:
//	  uint32 name length, name bytes
//	  uint32 rank, uint32 per dimension
//	  uint64 absolute payload offset
//	float32 payloads, each aligned to payloadAlign
const (
	Magic        = 0x31545856 // "VXT1"
	Version      = 1
	payloadAlign = 32
)

var byteOrder = binary.LittleEndian

// TensorDesc describes one tensor in the container.
type TensorDesc struct {
	Name   string
	Shape  []int
	Offset int64
}

// NumElements returns the element count implied by the shape.
func (d *TensorDesc) NumElements() int {
	n := 1
	for _, dim := range d.Shape {
		n *= dim
	}
	return n
}

func align(off int64) int64 {
	if rem := off % payloadAlign; rem != 0 {
		return off + payloadAlign - rem
	}
	return off
}

package weights

import (
	"bufio"
	"fmt"
	"math"
	"os"
)

// Tensor is one named tensor to write into a checkpoint.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float32
}

// Save writes tensors to path in the container format, replacing any
// existing file.
func Save(path string, tensors []Tensor) error {
	// Table size first, so payload offsets are known up front.
	headerSize := int64(12)
	for _, t := range tensors {
		headerSize += int64(4 + len(t.Name) + 4 + 4*len(t.Shape) + 8)
	}

	offsets := make([]int64, len(tensors))
	off := align(headerSize)
	for i, t := range tensors {
		n := 1
		for _, d := range t.Shape {
			if d <= 0 {
				return fmt.Errorf("tensor %q has non-positive dimension", t.Name)
			}
			n *= d
		}
		if len(t.Data) != n {
			return fmt.Errorf("tensor %q has %d elements, shape %v implies %d", t.Name, len(t.Data), t.Shape, n)
		}
		offsets[i] = off
		off = align(off + int64(n)*4)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	w := bufio.NewWriter(f)
	written := int64(0)

	writeU32 := func(v uint32) {
		var buf [4]byte
		byteOrder.PutUint32(buf[:], v)
		w.Write(buf[:])
		written += 4
	}
	writeU64 := func(v uint64) {
		var buf [8]byte
		byteOrder.PutUint64(buf[:], v)
		w.Write(buf[:])
		written += 8
	}
	pad := func(to int64) {
		for written < to {
			w.WriteByte(0)
			written++
		}
	}

	writeU32(Magic)
	writeU32(Version)
	writeU32(uint32(len(tensors)))
	for i, t := range tensors {
		writeU32(uint32(len(t.Name)))
		w.WriteString(t.Name)
		written += int64(len(t.Name))
		writeU32(uint32(len(t.Shape)))
		for _, d := range t.Shape {
			writeU32(uint32(d))
		}
		writeU64(uint64(offsets[i]))
	}

	var buf [4]byte
	for i, t := range tensors {
		pad(offsets[i])
		for _, v := range t.Data {
			byteOrder.PutUint32(buf[:], math.Float32bits(v))
			w.Write(buf[:])
			written += 4
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	return nil
}

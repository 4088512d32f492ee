package weights

import (
	"fmt"
	"unsafe"

	"golang.org/x/exp/mmap"
)

// Reader provides read access to a checkpoint file via memory mapping.
type Reader struct {
	path    string
	mmap    *mmap.ReaderAt
	data    []byte
	tensors map[string]*TensorDesc
	order   []string
}

// Open opens and parses a checkpoint file.
func Open(path string) (*Reader, error) {
	mmapReader, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	data := make([]byte, mmapReader.Len())
	if _, err := mmapReader.ReadAt(data, 0); err != nil {
		mmapReader.Close()
		return nil, fmt.Errorf("read mmap: %w", err)
	}

	r := &Reader{
		path:    path,
		mmap:    mmapReader,
		data:    data,
		tensors: make(map[string]*TensorDesc),
	}
	if err := r.parse(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Close unmaps the file.
func (r *Reader) Close() error {
	if r.mmap == nil {
		return nil
	}
	err := r.mmap.Close()
	r.mmap = nil
	return err
}

// Tensors returns the tensor names in file order.
func (r *Reader) Tensors() []string {
	return append([]string(nil), r.order...)
}

// Lookup returns the descriptor for a named tensor.
func (r *Reader) Lookup(name string) (*TensorDesc, bool) {
	d, ok := r.tensors[name]
	return d, ok
}

// Float32 returns a view of a tensor's payload. The slice aliases the mapped
// data and stays valid until Close.
func (r *Reader) Float32(name string) ([]float32, []int, error) {
	d, ok := r.tensors[name]
	if !ok {
		return nil, nil, fmt.Errorf("tensor %q not in checkpoint", name)
	}
	n := d.NumElements()
	end := d.Offset + int64(n)*4
	if end > int64(len(r.data)) {
		return nil, nil, fmt.Errorf("tensor %q payload extends past end of file", name)
	}
	view := unsafe.Slice((*float32)(unsafe.Pointer(&r.data[d.Offset])), n)
	return view, append([]int(nil), d.Shape...), nil
}

func (r *Reader) parse() error {
	if len(r.data) < 12 {
		return fmt.Errorf("file too small for header")
	}
	off := 0

	magic := byteOrder.Uint32(r.data[off:])
	off += 4
	if magic != Magic {
		return fmt.Errorf("invalid magic: 0x%08x", magic)
	}
	version := byteOrder.Uint32(r.data[off:])
	off += 4
	if version != Version {
		return fmt.Errorf("unsupported version: %d", version)
	}
	count := int(byteOrder.Uint32(r.data[off:]))
	off += 4

	for i := 0; i < count; i++ {
		if off+4 > len(r.data) {
			return fmt.Errorf("truncated tensor table at entry %d", i)
		}
		nameLen := int(byteOrder.Uint32(r.data[off:]))
		off += 4
		if off+nameLen+4 > len(r.data) {
			return fmt.Errorf("truncated tensor name at entry %d", i)
		}
		name := string(r.data[off : off+nameLen])
		off += nameLen

		rank := int(byteOrder.Uint32(r.data[off:]))
		off += 4
		if rank <= 0 || off+rank*4+8 > len(r.data) {
			return fmt.Errorf("truncated tensor shape at entry %d", i)
		}
		shape := make([]int, rank)
		for a := range shape {
			shape[a] = int(byteOrder.Uint32(r.data[off:]))
			off += 4
			if shape[a] <= 0 {
				return fmt.Errorf("tensor %q has non-positive dimension", name)
			}
		}
		offset := int64(byteOrder.Uint64(r.data[off:]))
		off += 8
		if offset%4 != 0 {
			return fmt.Errorf("tensor %q payload offset %d not 4-byte aligned", name, offset)
		}

		if _, dup := r.tensors[name]; dup {
			return fmt.Errorf("duplicate tensor %q", name)
		}
		d := &TensorDesc{Name: name, Shape: shape, Offset: offset}
		r.tensors[name] = d
		r.order = append(r.order, name)
	}
	return nil
}

package filter

import (
	"github.com/robert-malhotra/xpcs2nexus/internal/message"
)

// Shuffle stores byte j of every element together, which lets deflate
// find the runs in slowly varying high bytes. Its client data holds the
// element size.
type Shuffle struct {
	elemSize int
}

func NewShuffle(clientData []uint32) *Shuffle {
	size := 1
	if len(clientData) > 0 && clientData[0] > 0 {
		size = int(clientData[0])
	}
	return &Shuffle{elemSize: size}
}

func (f *Shuffle) ID() uint16 {
	return message.FilterShuffle
}

func (f *Shuffle) Decode(stored []byte) ([]byte, error) {
	return f.transpose(stored, false), nil
}

func (f *Shuffle) Encode(raw []byte) ([]byte, error) {
	return f.transpose(raw, true), nil
}

// transpose converts between element order and byte-plane order. Bytes
// past the last whole element stay where they are.
func (f *Shuffle) transpose(in []byte, shuffle bool) []byte {
	n := len(in) / max(f.elemSize, 1)
	if f.elemSize <= 1 || n == 0 {
		return in
	}
	out := make([]byte, len(in))
	for i := 0; i < n; i++ {
		for j := 0; j < f.elemSize; j++ {
			elem, plane := i*f.elemSize+j, j*n+i
			if shuffle {
				out[plane] = in[elem]
			} else {
				out[elem] = in[plane]
			}
		}
	}
	copy(out[n*f.elemSize:], in[n*f.elemSize:])
	return out
}

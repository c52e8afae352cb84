package btree

import (
	"fmt"

	"github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// nodeType is the kind of object a v1 B-tree indexes.
type nodeType uint8

const (
	groupNodes nodeType = 0
	chunkNodes nodeType = 1
)

// maxDepth bounds the descent into damaged trees.
const maxDepth = 64

// node is one v1 B-tree node. keys has one more entry than children.
type node struct {
	level    uint8
	keys     [][]byte
	children []uint64
}

func readNode(r *binary.Reader, addr uint64, want nodeType, keySize int) (*node, error) {
	nr := r.At(int64(addr))
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading B-tree node at %d: %w", addr, err)
	}
	if string(sig) != "TREE" {
		return nil, fmt.Errorf("invalid B-tree signature at %d: %q", addr, sig)
	}
	header, err := nr.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if got := nodeType(header[0]); got != want {
		return nil, fmt.Errorf("B-tree node at %d has type %d, want %d", addr, got, want)
	}
	n := &node{level: header[1]}
	used := int(r.ByteOrder().Uint16(header[2:]))

	// siblings
	nr.Skip(int64(2 * r.OffsetSize()))

	n.keys = make([][]byte, 0, used+1)
	n.children = make([]uint64, 0, used)
	for i := 0; i <= used; i++ {
		key, err := nr.ReadBytes(keySize)
		if err != nil {
			return nil, fmt.Errorf("reading B-tree key %d: %w", i, err)
		}
		n.keys = append(n.keys, key)
		if i == used {
			break
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("reading B-tree child %d: %w", i, err)
		}
		n.children = append(n.children, child)
	}
	return n, nil
}

// walk calls leaf with every leaf node below addr, in key order.
func walk(r *binary.Reader, addr uint64, typ nodeType, keySize int, leaf func(*node) error) error {
	var visit func(addr uint64, depth int) error
	visit = func(addr uint64, depth int) error {
		if depth > maxDepth {
			return fmt.Errorf("B-tree deeper than %d levels", maxDepth)
		}
		n, err := readNode(r, addr, typ, keySize)
		if err != nil {
			return err
		}
		if n.level == 0 {
			return leaf(n)
		}
		for _, child := range n.children {
			if err := visit(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(addr, 0)
}

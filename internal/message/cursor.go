package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/xpcs2nexus/internal/binary"
)

// cursor walks a message body. what names the message in errors.
type cursor struct {
	data []byte
	pos  int
	r    *binpkg.Reader
	what string
}

func (c *cursor) need(n int, field string) error {
	if n < 0 || c.pos+n > len(c.data) {
		return fmt.Errorf("%s: %s truncated", c.what, field)
	}
	return nil
}

func (c *cursor) uint(n int, field string) (uint64, error) {
	if err := c.need(n, field); err != nil {
		return 0, err
	}
	v := decodeUint(c.data[c.pos:], n, c.r.ByteOrder())
	c.pos += n
	return v, nil
}

func (c *cursor) offset(field string) (uint64, error) { return c.uint(c.r.OffsetSize(), field) }
func (c *cursor) length(field string) (uint64, error) { return c.uint(c.r.LengthSize(), field) }

func (c *cursor) bytes(n int, field string) ([]byte, error) {
	if err := c.need(n, field); err != nil {
		return nil, err
	}
	b := clone(c.data[c.pos : c.pos+n])
	c.pos += n
	return b, nil
}

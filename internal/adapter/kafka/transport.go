package kafka

import "errors"

// Transport pairs a Reader and a Writer into a node.Transport.
type Transport struct {
	*Reader
	*Writer
}

// NewTransport combines r and w.
func NewTransport(r *Reader, w *Writer) *Transport {
	return &Transport{Reader: r, Writer: w}
}

// Close closes both halves.
func (t *Transport) Close() error {
	return errors.Join(t.Reader.Close(), t.Writer.Close())
}

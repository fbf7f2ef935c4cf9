package socket

import (
	"io"

	"github.com/gobwas/ws"
)

// MaskedReader wraps an io.LimitedReader and deciphers masked client
// payloads as they are read.
type MaskedReader struct {
	*io.LimitedReader
	offset int
	mask   [4]byte
}

func NewMasked(r *io.LimitedReader, offset int, mask [4]byte) *MaskedReader {
	return &MaskedReader{r, offset, mask}
}

// Read implements io.Reader.
func (m *MaskedReader) Read(p []byte) (n int, err error) {
	offset := m.offset
	n, err = m.LimitedReader.Read(p)
	ws.Cipher(p[:n], m.mask, offset)
	m.offset += n
	return
}

// payloadReader returns a reader over the frame payload, deciphering it
// when the header says it is masked.
func payloadReader(header ws.Header, frame *io.LimitedReader) io.Reader {
	if header.Masked {
		return NewMasked(frame, 0, header.Mask)
	}
	return frame
}

// readPayload drains the frame payload into memory, deciphered. Used for
// control frames, whose payloads are at most 125 bytes.
func readPayload(header ws.Header, frame *io.LimitedReader) ([]byte, error) {
	return io.ReadAll(payloadReader(header, frame))
}

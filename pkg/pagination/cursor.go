package pagination

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Sternrassler/measurement-ingest/pkg/measurement"
)

// ErrInvalidCursor is returned for cursors the server did not issue.
var ErrInvalidCursor = errors.New("invalid cursor")

const (
	offsetLen = 8
	macLen    = 16
)

// CursorPage is a cursor-based slice of a generated sequence.
type CursorPage struct {
	Items       []measurement.Measurement `json:"items"`
	Size        int                       `json:"size"`
	CurrentPage *string                   `json:"current_page"`
	NextPage    *string                   `json:"next_page"`
}

// CursorCodec signs and verifies offset cursors.
type CursorCodec struct {
	secret []byte
}

// NewCursorCodec creates a codec. An empty secret is replaced by 32 random
// bytes, which scopes issued cursors to the current process.
func NewCursorCodec(secret []byte) (*CursorCodec, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate cursor secret: %w", err)
		}
	}
	return &CursorCodec{secret: secret}, nil
}

// Encode returns the opaque cursor for offset.
func (c *CursorCodec) Encode(offset int) string {
	buf := make([]byte, offsetLen, offsetLen+macLen)
	binary.BigEndian.PutUint64(buf, uint64(offset))
	buf = append(buf, c.sign(buf[:offsetLen])...)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// Decode verifies cursor and returns its offset.
func (c *CursorCodec) Decode(cursor string) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: not base64", ErrInvalidCursor)
	}
	if len(raw) != offsetLen+macLen {
		return 0, fmt.Errorf("%w: bad length %d", ErrInvalidCursor, len(raw))
	}

	if !hmac.Equal(raw[offsetLen:], c.sign(raw[:offsetLen])) {
		return 0, fmt.Errorf("%w: signature mismatch", ErrInvalidCursor)
	}

	offset := binary.BigEndian.Uint64(raw[:offsetLen])
	if offset > math.MaxInt32 {
		return 0, fmt.Errorf("%w: offset out of range", ErrInvalidCursor)
	}

	return int(offset), nil
}

func (c *CursorCodec) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return mac.Sum(nil)[:macLen]
}

// PaginateCursor returns size items starting at the offset encoded in after
// (nil means the start). NextPage is nil once the end of items is reached.
func PaginateCursor(items []measurement.Measurement, after *string, size int, codec *CursorCodec) (CursorPage, error) {
	size = SizeBounds.Clamp(size)

	offset := 0
	if after != nil {
		var err error
		offset, err = codec.Decode(*after)
		if err != nil {
			return CursorPage{}, err
		}
	}

	result := CursorPage{
		Items:       []measurement.Measurement{},
		Size:        size,
		CurrentPage: after,
	}

	total := len(items)
	if offset >= total {
		return result, nil
	}

	end := offset + size
	if end > total {
		end = total
	}
	result.Items = items[offset:end]

	if end < total {
		next := codec.Encode(end)
		result.NextPage = &next
	}

	return result, nil
}

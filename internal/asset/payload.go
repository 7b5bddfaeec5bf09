package asset

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// MaxDecodedSize caps a decompressed payload.
const MaxDecodedSize = 64 << 20

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ErrEmpty is returned for a zero-length payload.
var ErrEmpty = errors.New("empty asset payload")

// zstdDecoder is shared; zstd.Decoder is safe for concurrent DecodeAll.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecodedSize))
	if err != nil {
		panic("asset: zstd decoder initialization failed: " + err.Error())
	}
}

// Unwrap returns the raw asset bytes, decompressing a zstd frame when the
// payload starts with the zstd magic number.
func Unwrap(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// Compress zstd-encodes data. Used by producers that ship large payloads.
func Compress(data []byte) []byte {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("asset: zstd encoder initialization failed: " + err.Error())
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

// Digest is a short content fingerprint used in logs.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

package hybrid

import (
	"bytes"
	"crypto/aes"
	"fmt"

	"github.com/sealpost/sealpost/internal/envelope"
)

func pkcs7Pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: padded data length %d is not a positive multiple of %d", envelope.ErrEncoding, len(data), aes.BlockSize)
	}

	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize {
		return nil, fmt.Errorf("%w: invalid PKCS#7 padding", envelope.ErrEncoding)
	}

	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: invalid PKCS#7 padding", envelope.ErrEncoding)
		}
	}

	return data[:len(data)-n], nil
}

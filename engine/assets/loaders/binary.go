package loaders

import (
	"fmt"
	"io"
	"os"

	"github.com/spaghettifunk/framecore/engine/core"
)

// LoadSPIRV reads a compiled shader blob from disk as a sequence of 32-bit words.
func LoadSPIRV(path string) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shader %s: %w", path, err)
	}
	defer f.Close()

	code, err := DecodeSPIRV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load shader %s: %w", path, err)
	}
	return code, nil
}

// DecodeSPIRV consumes r entirely. The byte length must be a non-zero multiple of 4.
func DecodeSPIRV(r io.Reader) ([]uint32, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, fmt.Errorf("%d bytes: %w", len(buf), core.ErrShaderBlobSize)
	}
	return bytesToBytecode(buf), nil
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}

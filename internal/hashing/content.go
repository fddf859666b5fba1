package hashing

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// headTailSize is how much of each end of a file participates in the
// content hash. Sampling both ends plus the length catches truncation,
// re-encodes and appended data without reading multi-gigabyte files.
const headTailSize = 64 * 1024

// HashFile computes the content hash of the file at path: xxHash64 over
// the first 64 KiB, the file size as little-endian uint64, and the last
// 64 KiB, rendered as 16 lowercase hex digits. Files smaller than 64 KiB
// contribute their entire content as both head and tail.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()

	if size <= headTailSize {
		data, err := io.ReadAll(f)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return digest(data, size, data), nil
	}

	head := make([]byte, headTailSize)
	if _, err := io.ReadFull(f, head); err != nil {
		return "", fmt.Errorf("read head of %s: %w", path, err)
	}
	tail := make([]byte, headTailSize)
	if _, err := f.ReadAt(tail, size-headTailSize); err != nil {
		return "", fmt.Errorf("read tail of %s: %w", path, err)
	}
	return digest(head, size, tail), nil
}

func digest(head []byte, size int64, tail []byte) string {
	var sizeLE [8]byte
	binary.LittleEndian.PutUint64(sizeLE[:], uint64(size))

	d := xxhash.New()
	d.Write(head)
	d.Write(sizeLE[:])
	d.Write(tail)
	return fmt.Sprintf("%016x", d.Sum64())
}

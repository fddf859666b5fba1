//go:build !unix && !windows

package fileid

import (
	"os"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

// Identity is unavailable on this platform; move detection falls back
// to content hashes.
func Identity(path string, info os.FileInfo) *models.FileIdentity {
	return nil
}

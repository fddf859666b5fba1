//go:build unix

package fileid

import (
	"os"
	"syscall"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

// Identity returns the device and inode numbers for the file described
// by info. path is unused on unix; the kernel already handed us the stat
// data. Returns nil when the platform data is unavailable.
func Identity(path string, info os.FileInfo) *models.FileIdentity {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	return &models.FileIdentity{
		Device: uint64(st.Dev),
		Value:  uint64(st.Ino),
	}
}

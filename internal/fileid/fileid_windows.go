//go:build windows

package fileid

import (
	"os"

	"golang.org/x/sys/windows"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

// Identity returns the volume serial number and file index for the file
// at path. info is unused on windows; the identity requires an open
// handle. Returns nil when the file cannot be opened or queried.
func Identity(path string, info os.FileInfo) *models.FileIdentity {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil
	}
	h, err := windows.CreateFile(p, 0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return nil
	}
	defer windows.CloseHandle(h)

	var data windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &data); err != nil {
		return nil
	}
	return &models.FileIdentity{
		Device: uint64(data.VolumeSerialNumber),
		Value:  uint64(data.FileIndexHigh)<<32 | uint64(data.FileIndexLow),
	}
}

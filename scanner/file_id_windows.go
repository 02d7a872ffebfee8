//go:build windows

package scanner

import (
	"os"
	"strconv"

	"golang.org/x/sys/windows"
)

// getFileID returns a volume/file-index key for path. Opening without
// FILE_FLAG_OPEN_REPARSE_POINT resolves links, so a link and its target
// share the key.
func getFileID(path string, _ os.FileInfo) string {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return ""
	}
	h, err := windows.CreateFile(p, 0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)

	var fi windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &fi); err != nil {
		return ""
	}
	idx := uint64(fi.FileIndexHigh)<<32 | uint64(fi.FileIndexLow)
	return strconv.FormatUint(uint64(fi.VolumeSerialNumber), 10) + ":" + strconv.FormatUint(idx, 10)
}

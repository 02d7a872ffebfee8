//go:build !windows

package scanner

import (
	"os"
	"strconv"
	"syscall"
)

// getFileID returns a device/inode key for the file info describes, or ""
// when the platform stat data is unavailable. info must come from a
// following stat so that a link and its target share the key.
func getFileID(_ string, info os.FileInfo) string {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return ""
	}
	return strconv.FormatUint(uint64(st.Dev), 10) + ":" + strconv.FormatUint(uint64(st.Ino), 10)
}

//go:build !windows

package scanner

import (
	"os"
	"strconv"
	"syscall"
)

// getFileID identifies the index file by device and inode so hard links and
// copies can be told apart.
func getFileID(path string, info os.FileInfo) string {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok || stat == nil {
		return ""
	}
	return "dev=" + strconv.FormatUint(uint64(stat.Dev), 10) + ",inode=" + strconv.FormatUint(stat.Ino, 10)
}

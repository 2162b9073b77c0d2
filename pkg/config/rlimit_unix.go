//go:build !windows

package config

import "syscall"

// CheckOpenFilesRlimit compares the process's current RLIMIT_NOFILE soft
// limit against the configured rocksdb.max-open-files and returns a
// non-empty warning if the rlimit cannot satisfy it. This is the
// non-fatal OS-prerequisite check named in spec.md §6: insufficient
// rlimit is inspected and warned about, never treated as a startup
// failure, since the engine itself may still open successfully at a
// lower effective file count. Grounded on nabbar-golib's
// ioutils.systemFileDescriptor, which reads the same limit via the same
// syscall.Getrlimit/RLIMIT_NOFILE pair.
func CheckOpenFilesRlimit(maxOpenFiles int) string {
	if maxOpenFiles <= 0 {
		return ""
	}
	var rlim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlim); err != nil {
		return ""
	}
	if rlim.Cur < uint64(maxOpenFiles) {
		return fatalf("rocksdb.max-open-files (%d) exceeds the process's open-file rlimit (%d); raise the ulimit or lower max-open-files", maxOpenFiles, rlim.Cur).Error()
	}
	return ""
}

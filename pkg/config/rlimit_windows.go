//go:build windows

package config

// CheckOpenFilesRlimit is a no-op on Windows: there is no POSIX rlimit
// concept to compare rocksdb.max-open-files against.
func CheckOpenFilesRlimit(maxOpenFiles int) string {
	return ""
}

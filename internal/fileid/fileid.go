// Package fileid extracts a filesystem-level identity for a file, used
// to recognise moved files across scans. The identity is a hint, not a
// guarantee: filesystems recycle inode numbers, so a match must always
// be confirmed before acting on it.
package fileid

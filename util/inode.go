package util

import (
	"crypto/sha256"
	"encoding/binary"
	"strconv"
	"strings"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/taigrr/colorhash"
)

// ReadmeInode is the fixed inode of the marker file. Inode 0 is never handed
// out, so every derived inode is greater than ReadmeInode.
const ReadmeInode uint64 = 1

// dirInodeBit marks synthetic directory inodes. Short runtime identifiers are
// 12 hex digits, so their inodes never reach this bit.
const dirInodeBit = uint64(1) << 63

// InodeFromID derives a stable inode for an inventory identifier.
//
// Identifiers that are valid base-16 strings (optionally carrying a
// "sha256:" digest prefix) are parsed as unsigned integers, using at most
// their leading 16 digits. Any other identifier, or one that would land on a
// reserved inode, is hashed with SHA-256 and truncated to 64 bits.
func InodeFromID(id string) uint64 {
	hex := id
	if strings.HasPrefix(id, "sha256:") {
		if h, err := v1.NewHash(id); err == nil {
			hex = h.Hex
		}
	}
	if isHex(hex) {
		if len(hex) > 16 {
			hex = hex[:16]
		}
		if n, err := strconv.ParseUint(hex, 16, 64); err == nil && n > ReadmeInode {
			return n
		}
	}
	return HashInode(id)
}

// HashInode truncates the SHA-256 of s to a 64 bit inode.
func HashInode(s string) uint64 {
	sum := sha256.Sum256([]byte(s))
	n := binary.BigEndian.Uint64(sum[:8])
	if n <= ReadmeInode {
		n += ReadmeInode + 1
	}
	return n
}

// DirInode returns the inode of a synthetic directory. The root directory is
// DirInode("").
func DirInode(name string) uint64 {
	return uint64(colorhash.HashString("dir:"+name)) | dirInodeBit
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

package record

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
)

// HashName returns the 32 hex character content hash of s.
//
// The hash is MD5 so that names match files written by earlier releases.
// Postcondition: len(result) == 32 and the result depends only on s.
func HashName(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ScopeName returns the storage file stem for scopeID: the content hash of
// its decimal string form.
func ScopeName(scopeID int64) string {
	return HashName(strconv.FormatInt(scopeID, 10))
}

package util

import (
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
)

// An MD5Writer wraps an io.Writer and calculates the MD5 hash of the bytes
// written through it. It is used to compute an object's content checksum
// while the content is streaming past, so no second pass over the data is
// needed.
type MD5Writer struct {
	io.Writer // our io.MultiWriter
	md5       hash.Hash
}

// NewMD5Writer returns an MD5Writer wrapping w.
func NewMD5Writer(w io.Writer) *MD5Writer {
	hw := &MD5Writer{md5: md5.New()}
	hw.Writer = io.MultiWriter(w, hw.md5)
	return hw
}

// NewMD5WriterPlain returns an MD5Writer that does not wrap an output
// stream. It just computes the checksum of the data written to it.
func NewMD5WriterPlain() *MD5Writer {
	hw := &MD5Writer{md5: md5.New()}
	hw.Writer = hw.md5
	return hw
}

// Sum returns the hex encoded MD5 hash of everything written so far.
func (hw *MD5Writer) Sum() string {
	return hex.EncodeToString(hw.md5.Sum(nil))
}

// Check compares the hash of the written data against goal, a hex encoded
// MD5 checksum. An empty goal is treated as matching.
func (hw *MD5Writer) Check(goal string) bool {
	return goal == "" || goal == hw.Sum()
}

package partgethttp

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"net/http"
	"os"
	"strings"
)

const (
	ChecksumMD5    = "md5"
	ChecksumCRC32C = "crc32c"
)

type Checksum struct {
	Type  string
	Value string
}

type VerifyResult int

const (
	VerifyNotApplicable VerifyResult = iota
	VerifySuccessful
	VerifyFailed
)

func (r VerifyResult) String() string {
	switch r {
	case VerifySuccessful:
		return "Successful"
	case VerifyFailed:
		return "Failed"
	default:
		return "not applicable"
	}
}

// ParseGoogHash splits an x-goog-hash value such as
// "crc32c=n03x6A==, md5=Ojk9c3dhfxgoKVVHYwFbHQ==" into its entries.
func ParseGoogHash(value string) map[string]string {
	entries := make(map[string]string)
	for _, part := range strings.Split(value, ",") {
		key, val, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found || val == "" {
			continue
		}
		entries[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(val)
	}
	return entries
}

// ChecksumFromHeader picks the remote digest advertised in h. MD5 wins over
// CRC32C; Content-MD5 is used when x-goog-hash carries neither.
func ChecksumFromHeader(h http.Header) (Checksum, bool) {
	entries := make(map[string]string)
	for _, v := range h.Values("X-Goog-Hash") {
		for k, val := range ParseGoogHash(v) {
			entries[k] = val
		}
	}
	if v, ok := entries[ChecksumMD5]; ok {
		return Checksum{Type: ChecksumMD5, Value: v}, true
	}
	if v, ok := entries[ChecksumCRC32C]; ok {
		return Checksum{Type: ChecksumCRC32C, Value: v}, true
	}
	if v := strings.TrimSpace(h.Get("Content-MD5")); v != "" {
		return Checksum{Type: ChecksumMD5, Value: v}, true
	}
	return Checksum{}, false
}

func newHasher(checksumType string) (hash.Hash, error) {
	switch checksumType {
	case ChecksumMD5:
		return md5.New(), nil
	case ChecksumCRC32C:
		return crc32.New(crc32.MakeTable(crc32.Castagnoli)), nil
	default:
		return nil, fmt.Errorf("unsupported checksum type %q", checksumType)
	}
}

// isHexDigest reports whether value is a hex encoded digest of size bytes.
// Base64 digests of md5 and crc32c always carry padding, so they never match.
func isHexDigest(value string, size int) bool {
	if len(value) != 2*size {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}

// ComputeChecksum hashes the file at path and encodes the digest the same
// way as remote.Value.
func ComputeChecksum(path string, remote Checksum) (string, error) {
	hasher, err := newHasher(remote.Type)
	if err != nil {
		return "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	digest := hasher.Sum(nil)
	if isHexDigest(remote.Value, hasher.Size()) {
		return hex.EncodeToString(digest), nil
	}
	return base64.StdEncoding.EncodeToString(digest), nil
}

// VerifyFile compares the digest of path with remote. An empty remote value
// means the server advertised nothing, which is not a failure.
func VerifyFile(path string, remote Checksum) (VerifyResult, string, error) {
	if remote.Value == "" {
		return VerifyNotApplicable, "", nil
	}
	local, err := ComputeChecksum(path, remote)
	if err != nil {
		return VerifyFailed, "", err
	}
	match := local == remote.Value
	if !match {
		// hex digests compare case-insensitively
		_, hexErr := hex.DecodeString(remote.Value)
		match = hexErr == nil && strings.EqualFold(local, remote.Value)
	}
	if !match {
		return VerifyFailed, local, nil
	}
	return VerifySuccessful, local, nil
}

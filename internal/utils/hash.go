package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// hashHexLen is how many hex characters of the xxhash64 digest are kept
// for provenance fields (config_hash, input_hash, file_hash).
const hashHexLen = 16

// ComputeConfigHash hashes the canonically-serialized config (Go's JSON
// encoder emits map keys sorted) so the same settings always produce the
// same provenance hash.
func ComputeConfigHash(config map[string]any) string {
	raw, err := json.Marshal(config)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", config))
	}
	return truncateDigest(xxhash.Sum64(raw))
}

// ComputeInputHash streams the file through xxhash64 in 8-KiB blocks.
// A missing file hashes its path instead so callers still get a stable
// identifier for provenance records.
func ComputeInputHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return truncateDigest(xxhash.Sum64String(path)), nil
		}
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	buf := make([]byte, 8192)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			_, _ = h.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", readErr
		}
	}
	return truncateDigest(h.Sum64()), nil
}

// VerifyInputHash detects file drift between discovery and processing.
func VerifyInputHash(path string, expected string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		return false, fmt.Errorf("video file not found: %s", path)
	}
	computed, err := ComputeInputHash(path)
	if err != nil {
		return false, err
	}
	return computed == expected, nil
}

func truncateDigest(sum uint64) string {
	hex := fmt.Sprintf("%016x", sum)
	return hex[:hashHexLen]
}

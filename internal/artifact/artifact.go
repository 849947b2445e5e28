package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Variant names a capability tier of a deployable artifact.
type Variant string

const (
	VariantFull         Variant = "full"
	VariantConservative Variant = "conservative"
	VariantMinimal      Variant = "minimal"
)

// ParseVariant validates a variant name from user input.
func ParseVariant(name string) (Variant, error) {
	switch Variant(name) {
	case VariantFull, VariantConservative, VariantMinimal:
		return Variant(name), nil
	}
	return "", fmt.Errorf("unknown variant %q (expected full, conservative or minimal)", name)
}

// Artifact identifies a deployable bundle on disk.
type Artifact struct {
	Path    string
	Variant Variant
	Hash    string
}

// Fingerprint computes a SHA-256 content hash for the file at path.
func Fingerprint(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash artifact: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

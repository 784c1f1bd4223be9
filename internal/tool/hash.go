package tool

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

var hashers = map[string]func() hash.Hash{
	"md5":        md5.New,
	"sha1":       sha1.New,
	"sha224":     sha256.New224,
	"sha256":     sha256.New,
	"sha384":     sha512.New384,
	"sha512":     sha512.New,
	"sha512-256": sha512.New512_256,
	"sha3-256":   func() hash.Hash { return sha3.New256() },
	"sha3-512":   func() hash.Hash { return sha3.New512() },
	"blake2b-256": func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	},
	"blake2b-512": func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	},
}

// HashAlgorithms lists the supported digest names, sorted.
func HashAlgorithms() []string {
	names := make([]string, 0, len(hashers))
	for n := range hashers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HMACAlgorithms lists the digests usable with HMAC. BLAKE2b has its own
// keyed mode and is excluded.
func HMACAlgorithms() []string {
	var names []string
	for _, n := range HashAlgorithms() {
		if !strings.HasPrefix(n, "blake2b") {
			names = append(names, n)
		}
	}
	return names
}

func lookupHasher(algorithm string) (func() hash.Hash, error) {
	name := strings.ToLower(strings.TrimSpace(algorithm))
	name = strings.ReplaceAll(name, "_", "-")
	if fn, ok := hashers[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("unsupported algorithm %q (available: %s)", algorithm, strings.Join(HashAlgorithms(), ", "))
}

// EncodeDigest renders sum as hex, HEX or base64.
func EncodeDigest(sum []byte, encoding string) (string, error) {
	switch encoding {
	case "", "hex":
		return hex.EncodeToString(sum), nil
	case "HEX":
		return strings.ToUpper(hex.EncodeToString(sum)), nil
	case "base64":
		return base64.StdEncoding.EncodeToString(sum), nil
	}
	return "", fmt.Errorf("unsupported encoding %q (use hex, HEX or base64)", encoding)
}

// Digest hashes text with algorithm.
func Digest(algorithm, text string) ([]byte, error) {
	fn, err := lookupHasher(algorithm)
	if err != nil {
		return nil, err
	}
	h := fn()
	h.Write([]byte(text))
	return h.Sum(nil), nil
}

// HMAC computes the keyed MAC of text.
func HMAC(algorithm, key, text string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("hmac requires a non-empty key")
	}
	if strings.HasPrefix(strings.ToLower(algorithm), "blake2b") {
		return nil, fmt.Errorf("hmac does not support %s (available: %s)", algorithm, strings.Join(HMACAlgorithms(), ", "))
	}
	fn, err := lookupHasher(algorithm)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(fn, []byte(key))
	mac.Write([]byte(text))
	return mac.Sum(nil), nil
}

// Verify compares an expected digest (hex in any case, or base64) with sum
// in constant time.
func Verify(sum []byte, expected string) bool {
	expected = strings.TrimSpace(expected)
	want, err := hex.DecodeString(strings.ToLower(expected))
	if err != nil || len(want) != len(sum) {
		want, err = base64.StdEncoding.DecodeString(expected)
		if err != nil {
			return false
		}
	}
	return subtle.ConstantTimeCompare(sum, want) == 1
}

func digestResult(sum []byte, encoding, expected string) (string, error) {
	out, err := EncodeDigest(sum, encoding)
	if err != nil {
		return "", err
	}
	if expected == "" {
		return out, nil
	}
	if Verify(sum, expected) {
		return out + "\nmatch: true", nil
	}
	return out + "\nmatch: false", nil
}

// HashTool computes message digests.
type HashTool struct {
	defaultAlgorithm string
}

func NewHashTool(defaultAlgorithm string) *HashTool {
	if defaultAlgorithm == "" {
		defaultAlgorithm = "sha256"
	}
	return &HashTool{defaultAlgorithm: defaultAlgorithm}
}

func (t *HashTool) Name() string { return "hash" }
func (t *HashTool) Description() string {
	return "Compute MD5, SHA-1, SHA-2, SHA-3 or BLAKE2b digests of text. algorithm=all lists every digest."
}
func (t *HashTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"text":      {Type: "string", Description: "Input text"},
			"algorithm": {Type: "string", Description: "Digest algorithm or 'all'", Enum: append(HashAlgorithms(), "all")},
			"encoding":  {Type: "string", Description: "Output encoding", Enum: []string{"hex", "HEX", "base64"}},
			"expected":  {Type: "string", Description: "Optional digest to verify against"},
		},
		[]string{"text"},
	)
}

func (t *HashTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	text := ArgsString(args, "text")
	encoding := ArgsString(args, "encoding")
	algorithm := ArgsString(args, "algorithm")
	if algorithm == "" {
		algorithm = t.defaultAlgorithm
	}

	if algorithm == "all" {
		var b strings.Builder
		for _, name := range HashAlgorithms() {
			sum, _ := Digest(name, text)
			out, err := EncodeDigest(sum, encoding)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%-12s %s\n", name, out)
		}
		return strings.TrimSuffix(b.String(), "\n"), nil
	}

	sum, err := Digest(algorithm, text)
	if err != nil {
		return "", err
	}
	return digestResult(sum, encoding, ArgsString(args, "expected"))
}

// HMACTool computes keyed message authentication codes.
type HMACTool struct {
	defaultAlgorithm string
}

func NewHMACTool(defaultAlgorithm string) *HMACTool {
	if defaultAlgorithm == "" || strings.HasPrefix(defaultAlgorithm, "blake2b") {
		defaultAlgorithm = "sha256"
	}
	return &HMACTool{defaultAlgorithm: defaultAlgorithm}
}

func (t *HMACTool) Name() string { return "hmac" }
func (t *HMACTool) Description() string {
	return "Compute an HMAC of text with a UTF-8 key over MD5, SHA-1, SHA-2 or SHA-3."
}
func (t *HMACTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"text":      {Type: "string", Description: "Message"},
			"key":       {Type: "string", Description: "Secret key"},
			"algorithm": {Type: "string", Description: "Digest algorithm", Enum: HMACAlgorithms()},
			"encoding":  {Type: "string", Description: "Output encoding", Enum: []string{"hex", "HEX", "base64"}},
			"expected":  {Type: "string", Description: "Optional MAC to verify against"},
		},
		[]string{"text", "key"},
	)
}

func (t *HMACTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	algorithm := ArgsString(args, "algorithm")
	if algorithm == "" {
		algorithm = t.defaultAlgorithm
	}
	sum, err := HMAC(algorithm, ArgsString(args, "key"), ArgsString(args, "text"))
	if err != nil {
		return "", err
	}
	return digestResult(sum, ArgsString(args, "encoding"), ArgsString(args, "expected"))
}

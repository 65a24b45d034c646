package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	phcAlgorithm = "argon2id"

	minMemoryKB   uint32 = 8 * 1024
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16

	// MaxPasswordBytes caps input length so oversized payloads cannot pin
	// a worker in key derivation.
	MaxPasswordBytes = 1024
)

// ErrPasswordTooLong is returned for inputs above MaxPasswordBytes.
var ErrPasswordTooLong = errors.New("password exceeds maximum length")

// ErrMalformedHash is returned when a stored hash does not parse as a
// supported PHC string.
var ErrMalformedHash = errors.New("malformed password hash")

// Params sets the Argon2id cost parameters for newly created hashes.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns the cost parameters new deployments start from.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies passwords. Verification reads parameters
// from the stored hash, so one Hasher handles hashes of any vintage.
type Hasher struct {
	params Params
}

// NewHasher creates a [Hasher] after validating the cost parameters.
func NewHasher(params Params) (*Hasher, error) {
	if params.Memory < minMemoryKB {
		return nil, fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	}
	if params.Time < 1 {
		return nil, errors.New("password time cost must be >= 1")
	}
	if params.Parallelism < 1 {
		return nil, errors.New("password parallelism must be >= 1")
	}
	if params.SaltLength < minSaltLength {
		return nil, fmt.Errorf("password salt length must be >= %d", minSaltLength)
	}
	if params.KeyLength < minKeyLength {
		return nil, fmt.Errorf("password key length must be >= %d", minKeyLength)
	}
	return &Hasher{params: params}, nil
}

// Hash derives a PHC-encoded Argon2id hash with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password), salt,
		h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength,
	)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, argon2.Version,
		h.params.Memory, h.params.Time, h.params.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the stored hash. The comparison
// is constant time over the derived key.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	if len(password) > MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}

	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password), parsed.salt,
		parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.key)),
	)
	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

// NeedsRehash reports whether the stored hash was produced with weaker
// parameters than the Hasher currently uses.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	switch {
	case parsed.memory < h.params.Memory,
		parsed.time < h.params.Time,
		parsed.parallelism < h.params.Parallelism,
		uint32(len(parsed.key)) != h.params.KeyLength:
		return true, nil
	}
	return false, nil
}

type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encodedHash string) (*phcHash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != phcAlgorithm {
		return nil, ErrMalformedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, ErrMalformedHash
	}

	parsed := &phcHash{}
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, ErrMalformedHash
		}
		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil {
				return nil, ErrMalformedHash
			}
			parsed.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil {
				return nil, ErrMalformedHash
			}
			parsed.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil {
				return nil, ErrMalformedHash
			}
			parsed.parallelism = uint8(v)
		default:
			return nil, ErrMalformedHash
		}
	}
	if parsed.memory == 0 || parsed.time == 0 || parsed.parallelism == 0 {
		return nil, ErrMalformedHash
	}

	parsed.salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(parsed.salt) < int(minSaltLength) {
		return nil, ErrMalformedHash
	}
	parsed.key, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(parsed.key) == 0 {
		return nil, ErrMalformedHash
	}

	return parsed, nil
}

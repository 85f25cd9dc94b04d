package urlutil

import (
	"encoding/base32"
	"errors"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// OnionSuffix is the top-level domain of Tor hidden services.
const OnionSuffix = ".onion"

const (
	onionV3Version = 0x03
	// pubkey(32) + checksum(2) + version(1)
	onionV3DecodedLen = 35
)

var (
	// ErrInvalidOnionAddress is returned for a .onion host that is not a
	// well-formed v3 address.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrV2OnionAddress is returned for 16 character v2 addresses, which the
	// Tor network no longer serves.
	ErrV2OnionAddress = errors.New("v2 onion addresses are no longer reachable")
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

var onionChecksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host belongs to the .onion domain.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), OnionSuffix)
}

// ValidateOnionHost checks that host is a v3 onion address with a correct
// checksum. Subdomains of an onion service are accepted.
func ValidateOnionHost(host string) error {
	host = strings.ToLower(host)
	if labels := strings.Split(host, "."); len(labels) > 2 {
		host = strings.Join(labels[len(labels)-2:], ".")
	}

	if onionV2Pattern.MatchString(host) {
		return ErrV2OnionAddress
	}
	if !onionV3Pattern.MatchString(host) {
		return ErrInvalidOnionAddress
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(host, OnionSuffix)))
	if err != nil || len(decoded) != onionV3DecodedLen {
		return ErrInvalidOnionAddress
	}
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionV3Version {
		return ErrInvalidOnionAddress
	}
	want := onionChecksum(pubkey, version)
	if checksum[0] != want[0] || checksum[1] != want[1] {
		return ErrInvalidOnionAddress
	}
	return nil
}

// OnionHostFromPublicKey derives the v3 onion host of an ed25519 public key.
func OnionHostFromPublicKey(pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", ErrInvalidOnionAddress
	}
	data := make([]byte, 0, onionV3DecodedLen)
	data = append(data, pubkey...)
	data = append(data, onionChecksum(pubkey, onionV3Version)...)
	data = append(data, onionV3Version)
	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix, nil
}

// onionChecksum returns the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func onionChecksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(onionChecksumPrefix)+len(pubkey)+1)
	data = append(data, onionChecksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)
	return sum[:2]
}

package urlutil

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestValidateOnionHost(t *testing.T) {
	t.Parallel()

	valid, err := OnionHostFromPublicKey(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("OnionHostFromPublicKey: %v", err)
	}
	if len(valid) != 62 {
		t.Fatalf("expected 62 character host, got %d (%s)", len(valid), valid)
	}

	// Flip the first character to break the checksum while keeping the format.
	first := "a"
	if valid[0] == 'a' {
		first = "b"
	}
	corrupted := first + valid[1:]

	tests := []struct {
		name string
		host string
		want error
	}{
		{"valid v3", valid, nil},
		{"upper case v3", strings.ToUpper(valid), nil},
		{"subdomain of v3", "www." + valid, nil},
		{"bad checksum", corrupted, ErrInvalidOnionAddress},
		{"v2 address", "expyuzz4wqqyqhjn.onion", ErrV2OnionAddress},
		{"wrong length", "abc.onion", ErrInvalidOnionAddress},
		{"illegal characters", strings.Repeat("1", 56) + ".onion", ErrInvalidOnionAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateOnionHost(tt.host)
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestOnionHostFromPublicKey(t *testing.T) {
	t.Parallel()

	if _, err := OnionHostFromPublicKey([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidOnionAddress) {
		t.Errorf("expected ErrInvalidOnionAddress for short key, got %v", err)
	}

	a, _ := OnionHostFromPublicKey(bytes.Repeat([]byte{1}, 32))
	b, _ := OnionHostFromPublicKey(bytes.Repeat([]byte{2}, 32))
	if a == b {
		t.Error("different keys produced the same host")
	}
}

func TestIsOnionHost(t *testing.T) {
	t.Parallel()

	if !IsOnionHost("Example.ONION") {
		t.Error("expected .ONION to be recognized")
	}
	if IsOnionHost("example.com") {
		t.Error("example.com is not an onion host")
	}
}

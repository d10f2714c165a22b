package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0xAB}, AddressLength)
	addr, err := NewAddress(raw)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}

	encoded := addr.String()
	if !strings.HasPrefix(encoded, AddressPrefix+"1") {
		t.Fatalf("expected %q prefix, got %q", AddressPrefix, encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: %s vs %s", decoded, addr)
	}
}

func TestNewAddressRejectsBadLength(t *testing.T) {
	if _, err := NewAddress([]byte{0x01}); err == nil {
		t.Fatal("expected error for short input")
	}
	if _, err := NewAddress(bytes.Repeat([]byte{0x01}, 32)); err == nil {
		t.Fatal("expected error for long input")
	}
}

func TestNewAddressClonesInput(t *testing.T) {
	raw := bytes.Repeat([]byte{0x01}, AddressLength)
	addr, err := NewAddress(raw)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	raw[0] = 0xFF
	if addr.Bytes()[0] != 0x01 {
		t.Fatal("address must not alias the caller's buffer")
	}
}

func TestDecodeAddressRejectsWrongPrefix(t *testing.T) {
	if _, err := DecodeAddress("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"); err == nil {
		t.Fatal("expected error for foreign prefix")
	}
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("expected error for malformed string")
	}
}

func TestIsZero(t *testing.T) {
	if !(Address{}).IsZero() {
		t.Fatal("empty address must be zero")
	}
	if !MustNewAddress(make([]byte, AddressLength)).IsZero() {
		t.Fatal("all-zero address must be zero")
	}
	if MustNewAddress(bytes.Repeat([]byte{0x01}, AddressLength)).IsZero() {
		t.Fatal("non-zero address must not be zero")
	}
}

func TestKeyDerivesStableAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}

	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes: %v", err)
	}
	if !restored.PubKey().Address().Equal(key.PubKey().Address()) {
		t.Fatal("restored key must derive the same address")
	}
}

// Package tokenbox seals OAuth refresh tokens before they are written to the
// user profile store.
package tokenbox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrCorrupt = errors.New("tokenbox: ciphertext corrupt or key mismatch")

type Box struct {
	key [32]byte
}

func New(key [32]byte) *Box {
	return &Box{key: key}
}

// Seal returns base64(nonce || secretbox(plaintext)). An empty input seals to "".
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *Box) Open(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrCorrupt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrCorrupt
	}
	return string(plain), nil
}

// Package fieldcrypt encrypts individual string fields for storage.
//
// Values are stored as "ENC::<iv>:<ciphertext>" using AES-256-CBC with a
// random IV and PKCS#7 padding, both parts URL-safe base64 without padding.
// Values without the prefix are returned unchanged by Decrypt so rows written
// before encryption was enabled still read.
package fieldcrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prefix marks an encrypted value.
const Prefix = "ENC::"

// MinKeyBytes is the minimum key length; only the first 32 bytes are used.
const MinKeyBytes = 32

var (
	ErrShortKey  = errors.New("encryption key must be at least 32 bytes")
	ErrMalformed = errors.New("malformed encrypted value")
)

var encoding = base64.RawURLEncoding //nolint:gochecknoglobals // shared codec

// Codec encrypts and decrypts field values with one key.
type Codec struct {
	block cipher.Block
	rand  io.Reader
}

// New builds a Codec from key.
func New(key []byte) (*Codec, error) {
	if len(key) < MinKeyBytes {
		return nil, ErrShortKey
	}
	block, err := aes.NewCipher(key[:MinKeyBytes])
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: %w", err)
	}
	return &Codec{block: block, rand: rand.Reader}, nil
}

// Encrypt returns the stored form of plain. Empty and already encrypted
// values are returned as is.
func (c *Codec) Encrypt(plain string) (string, error) {
	if plain == "" || strings.HasPrefix(plain, Prefix) {
		return plain, nil
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("fieldcrypt: iv: %w", err)
	}
	data := pad([]byte(plain), aes.BlockSize)
	ct := make([]byte, len(data))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ct, data)
	return Prefix + encoding.EncodeToString(iv) + ":" + encoding.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt. Plain values pass through.
func (c *Codec) Decrypt(stored string) (string, error) {
	if !strings.HasPrefix(stored, Prefix) {
		return stored, nil
	}
	ivPart, ctPart, ok := strings.Cut(strings.TrimPrefix(stored, Prefix), ":")
	if !ok {
		return "", ErrMalformed
	}
	iv, err := encoding.DecodeString(ivPart)
	if err != nil || len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: iv", ErrMalformed)
	}
	ct, err := encoding.DecodeString(ctPart)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext", ErrMalformed)
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(pt, ct)
	out, err := unpad(pt, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("%w: padding", ErrMalformed)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("%w: padding", ErrMalformed)
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, fmt.Errorf("%w: padding", ErrMalformed)
		}
	}
	return b[:len(b)-n], nil
}

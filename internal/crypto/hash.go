package crypto

import (
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// ContentHashLen длина hex-представления хеша содержимого
const ContentHashLen = blake2b.Size256 * 2

// ContentHash вычисляет адрес содержимого: hex-encoded BLAKE2b-256.
// Используется на клиенте и сервере, поэтому одинаковые байты
// всегда получают одинаковый адрес.
func ContentHash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ContentHashReader хеширует поток без загрузки его целиком в память.
func ContentHashReader(r io.Reader) (string, int64, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create hasher: %w", err)
	}

	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash content: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// VerifyContentHash проверяет, что данные соответствуют ожидаемому адресу
func VerifyContentHash(data []byte, expected string) error {
	if expected == "" {
		return fmt.Errorf("expected content hash cannot be empty")
	}

	actual := ContentHash(data)
	if actual != expected {
		return fmt.Errorf("content hash mismatch: expected %s, got %s", expected, actual)
	}

	return nil
}

// IsContentHash reports whether s looks like a value produced by ContentHash.
func IsContentHash(s string) bool {
	if len(s) != ContentHashLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

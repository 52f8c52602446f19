// Package tokens genera los valores opacos del servicio: state del flujo OAuth,
// ids de sesión y sus hashes de almacenamiento.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// MinBytes es la entropía mínima aceptada para valores opacos (128 bits).
const MinBytes = 16

// GenerateOpaqueToken genera nBytes aleatorios en base64url sin padding.
func GenerateOpaqueToken(nBytes int) (string, error) {
	if nBytes < MinBytes {
		return "", fmt.Errorf("tokens: %d bytes is below the %d byte minimum", nBytes, MinBytes)
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("tokens: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL devuelve sha256(s) en base64url sin padding (clave de almacenamiento).
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

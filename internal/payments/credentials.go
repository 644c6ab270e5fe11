package payments

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const nonceSize = 24

// KeyFromSecret превращает строковый секрет конфигурации в ключ шифрования.
func KeyFromSecret(secret string) [32]byte {
	return sha256.Sum256([]byte(secret))
}

// SealCredentials шифрует учётные данные шлюза для хранения. Nonce
// генерируется на каждый вызов и пишется префиксом в результат.
func SealCredentials(creds domain.GatewayCredentials, key [32]byte) ([]byte, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return secretbox.Seal(nonce[:], plaintext, &nonce, &key), nil
}

// OpenCredentials расшифровывает сохранённые учётные данные. Открытые
// данные не кэшируются: расшифровка делается на время одного вызова шлюза.
func OpenCredentials(sealed []byte, key [32]byte) (domain.GatewayCredentials, error) {
	if len(sealed) < nonceSize {
		return domain.GatewayCredentials{}, fmt.Errorf("sealed credentials too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &key)
	if !ok {
		return domain.GatewayCredentials{}, fmt.Errorf("open sealed credentials: authentication failed")
	}

	var creds domain.GatewayCredentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return domain.GatewayCredentials{}, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return creds, nil
}

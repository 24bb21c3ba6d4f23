package crypto

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"

	"waos/internal/utils/logger"
)

var log = logger.New("crypto")

// LoadPrivateKey decodes a base64 encoded PEM private key. An empty value means no key is
// configured and returns (nil, nil).
func LoadPrivateKey(encoded string) (*rsa.PrivateKey, error) {
	if encoded == "" {
		return nil, nil
	}

	log.Info("Initializing keys")

	pemBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	key, err := ssh.ParseRawPrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	privateKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not an RSA key")
	}
	return privateKey, nil
}

package utils

import (
	"fmt"
	"strings"

	"github.com/nbutton23/zxcvbn-go"
	"golang.org/x/crypto/bcrypt"
)

// WeakPasswordError reports a password below the required zxcvbn score (0-4).
type WeakPasswordError struct {
	Score     int
	MinScore  int
	CrackTime string
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("password too weak: score %d of 4, need %d", e.Score, e.MinScore)
}

func (e *WeakPasswordError) StatusCode() int { return 422 }

func (e *WeakPasswordError) Description() string {
	return fmt.Sprintf("Password too weak, it could be cracked in %s. ", e.CrackTime)
}

// CheckPasswordStrength scores password with zxcvbn. userInputs (names, e-mail) are penalised
// when they appear in the password.
func CheckPasswordStrength(password string, minScore int, userInputs ...string) error {
	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if in = strings.TrimSpace(in); in != "" {
			inputs = append(inputs, in)
		}
	}

	result := zxcvbn.PasswordStrength(password, inputs)
	if result.Score < minScore {
		return &WeakPasswordError{Score: result.Score, MinScore: minScore, CrackTime: result.CrackTimeDisplay}
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// ComparePassword reports whether password matches the bcrypt hash.
func ComparePassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

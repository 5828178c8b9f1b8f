package app

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashPassword creates a bcrypt hash for storage.
func hashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", errors.New("password is too long")
		}
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

// verifyPassword checks a plaintext password against a stored hash.
func verifyPassword(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errors.New("invalid credentials")
		}
		return fmt.Errorf("could not verify password: %w", err)
	}
	return nil
}

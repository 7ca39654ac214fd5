//go:build !windows

package config

import "errors"

func decryptSecret(string) (string, error) {
	return "", errors.New("dpapi secrets can only be decrypted on Windows")
}

//go:build windows

package config

import "github.com/billgraziano/dpapi"

func decryptSecret(encrypted string) (string, error) {
	return dpapi.Decrypt(encrypted)
}

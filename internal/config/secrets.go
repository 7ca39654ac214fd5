package config

import "strings"

const dpapiPrefix = "dpapi:"

func resolveSecret(v string) (string, error) {
	if !strings.HasPrefix(v, dpapiPrefix) {
		return v, nil
	}

	return decryptSecret(strings.TrimPrefix(v, dpapiPrefix))
}

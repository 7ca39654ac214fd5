package config

import (
	"fmt"
	"strings"

	"github.com/hectorgimenez/d2go/pkg/data"
)

// Windows virtual-key codes for the keys a binding can name.
var namedKeys = map[string]byte{
	"SPACE":     0x20,
	"TAB":       0x09,
	"ENTER":     0x0D,
	"SHIFT":     0x10,
	"CTRL":      0x11,
	"ALT":       0x12,
	"BACKSPACE": 0x08,
	"ESCAPE":    0x1B,
	"LBUTTON":   0x01,
	"RBUTTON":   0x02,
	"MBUTTON":   0x04,
	"XBUTTON1":  0x05,
	"XBUTTON2":  0x06,
}

// KeyBindingFor resolves a key name such as "Q", "7", "F4" or "SPACE" to a key binding.
func KeyBindingFor(name string) (data.KeyBinding, error) {
	vk, err := virtualKey(name)
	if err != nil {
		return data.KeyBinding{}, err
	}

	return data.KeyBinding{Key1: [2]byte{vk, 0}}, nil
}

func virtualKey(name string) (byte, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return 0, fmt.Errorf("empty key name")
	}

	if vk, found := namedKeys[n]; found {
		return vk, nil
	}

	if len(n) == 1 {
		c := n[0]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return c, nil
		}
	}

	if n[0] == 'F' {
		var f int
		if _, err := fmt.Sscanf(n[1:], "%d", &f); err == nil && f >= 1 && f <= 24 && fmt.Sprint(f) == n[1:] {
			return byte(0x70 + f - 1), nil
		}
	}

	return 0, fmt.Errorf("unknown key %q", name)
}

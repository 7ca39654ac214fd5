//go:build !windows

package game

import (
	"fmt"
	"runtime"

	"github.com/hectorgimenez/d2go/pkg/data"
)

type NativeInput struct{}

func NewNativeInput() (*NativeInput, error) {
	return nil, fmt.Errorf("native input on %s: %w", runtime.GOOS, ErrCapabilityUnavailable)
}

func (n *NativeInput) KeyDown(byte) error { return ErrCapabilityUnavailable }
func (n *NativeInput) KeyUp(byte) error { return ErrCapabilityUnavailable }
func (n *NativeInput) SetPointer(data.Position) error { return ErrCapabilityUnavailable }
func (n *NativeInput) PointerPosition() data.Position { return data.Position{} }

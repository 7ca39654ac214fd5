//go:build windows

package game

import (
	"errors"
	"unsafe"

	"github.com/hectorgimenez/d2go/pkg/data"
	"github.com/lxn/win"
)

// NativeInput sends input through the Win32 SendInput queue of the current desktop.
type NativeInput struct{}

func NewNativeInput() (*NativeInput, error) {
	return &NativeInput{}, nil
}

func (n *NativeInput) KeyDown(key byte) error {
	return sendKey(key, 0)
}

func (n *NativeInput) KeyUp(key byte) error {
	return sendKey(key, win.KEYEVENTF_KEYUP)
}

func (n *NativeInput) SetPointer(pos data.Position) error {
	if !win.SetCursorPos(int32(pos.X), int32(pos.Y)) {
		return errors.New("SetCursorPos failed")
	}
	return nil
}

func (n *NativeInput) PointerPosition() data.Position {
	var pt win.POINT
	if !win.GetCursorPos(&pt) {
		return data.Position{}
	}
	return data.Position{X: int(pt.X), Y: int(pt.Y)}
}

func sendKey(key byte, flags uint32) error {
	in := win.KEYBD_INPUT{
		Type: win.INPUT_KEYBOARD,
		Ki: win.KEYBDINPUT{
			WVk:     uint16(key),
			DwFlags: flags,
		},
	}

	if win.SendInput(1, unsafe.Pointer(&in), int32(unsafe.Sizeof(in))) != 1 {
		return errors.New("SendInput rejected the key event")
	}
	return nil
}

//go:build windows

package utils

import (
	"syscall"

	"golang.org/x/sys/windows"
)

func ShowDialog(title, message string) {
	t, _ := syscall.UTF16PtrFromString(title)
	txt, _ := syscall.UTF16PtrFromString(message)

	windows.MessageBox(0, txt, t, 0)
}

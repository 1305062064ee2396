package sysusers

import (
	"os"
	"strconv"
	"strings"
)

// FileSession reads the active session owner from a state file holding the
// uid in decimal, the layout used by the seat manager. The file is read on
// every query; the session authority owns it and the model consults it
// rarely.
type FileSession struct {
	Path string
}

func (s FileSession) CurrentUID() (uint32, bool) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return 0, false
	}
	uid, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(uid), true
}

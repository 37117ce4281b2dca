package resource

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// Mode selects where resources are read from and written to
type Mode int32

const (
	ModeRemote Mode = iota
	ModeLocal
)

func (m Mode) String() string {
	switch m {
	case ModeRemote:
		return "remote"
	case ModeLocal:
		return "local"
	default:
		return "unknown"
	}
}

// ParseMode parses "remote" or "local"
func ParseMode(v string) (Mode, error) {
	switch v {
	case "remote", "":
		return ModeRemote, nil
	case "local":
		return ModeLocal, nil
	default:
		return 0, errors.Errorf("unknown mode %q (supported: remote, local)", v)
	}
}

// Switch holds the process wide mode, it is read on every resource call
type Switch struct {
	mode atomic.Int32
}

func NewSwitch(m Mode) *Switch {
	s := &Switch{}
	s.Set(m)
	return s
}

func (s *Switch) Mode() Mode {
	return Mode(s.mode.Load())
}

func (s *Switch) Set(m Mode) {
	s.mode.Store(int32(m))
}

func (s *Switch) Local() bool {
	return s.Mode() == ModeLocal
}

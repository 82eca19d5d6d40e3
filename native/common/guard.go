package common

import "errors"

// ErrModulePaused is returned by Guard when the named module is halted by
// the operator. Mutating actions must be rejected; reads stay available.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the operator pause switches to native modules.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the action when the module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a fixed pause set, handy for configuration-driven wiring
// and tests.
type StaticPauses map[string]bool

// IsPaused implements the PauseView interface.
func (s StaticPauses) IsPaused(module string) bool { return s[module] }

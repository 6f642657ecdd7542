package models

import (
	"strconv"
	"strings"
	"sync"
)

type UpdateState int

const (
	UpdateNone UpdateState = iota
	UpdateOptional
	UpdateMandatory
)

func (s UpdateState) String() string {
	switch s {
	case UpdateOptional:
		return "optional"
	case UpdateMandatory:
		return "mandatory"
	default:
		return "none"
	}
}

// CompareVersions compares dotted version strings component-wise, padding
// missing components with zero, so "1.2" == "1.2.0" and "1.10" > "1.9".
func CompareVersions(a, b string) int {
	as := strings.Split(strings.TrimSpace(a), ".")
	bs := strings.Split(strings.TrimSpace(b), ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(strings.TrimSpace(as[i]))
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(strings.TrimSpace(bs[i]))
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// UpdateGate derives the app-update state from the installed version and the
// server's minimum/recommended versions. Once a version has been gated as
// mandatory it stays mandatory; only an explicit server-driven override can
// change that.
type UpdateGate struct {
	mu      sync.Mutex
	current string
	state   UpdateState
}

func NewUpdateGate(currentVersion string) *UpdateGate {
	return &UpdateGate{current: currentVersion}
}

func (g *UpdateGate) State() UpdateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Evaluate advances the gate for the installed version. The state never
// regresses from mandatory through this path.
func (g *UpdateGate) Evaluate(minimum, recommended string) UpdateState {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := UpdateNone
	switch {
	case minimum != "" && CompareVersions(g.current, minimum) < 0:
		next = UpdateMandatory
	case recommended != "" && CompareVersions(g.current, recommended) < 0:
		next = UpdateOptional
	}

	if g.state == UpdateMandatory {
		return g.state
	}
	g.state = next
	return g.state
}

// ForceState applies a server-driven override, the only path that may
// downgrade a mandatory gate.
func (g *UpdateGate) ForceState(s UpdateState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
}

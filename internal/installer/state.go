// SPDX-License-Identifier: MPL-2.0

package installer

// State is a step of an install run.
type State int

const (
	StateStart State = iota
	StateDetectHost
	StateResolveTarget
	StateCheckLocal
	StateDownload
	StateVerify
	StatePlace
	StateSatisfied
	StateDone
	StateUnsupported
	StateFailed
)

var stateNames = [...]string{
	StateStart:         "start",
	StateDetectHost:    "detect-host",
	StateResolveTarget: "resolve-target",
	StateCheckLocal:    "check-local",
	StateDownload:      "download",
	StateVerify:        "verify",
	StatePlace:         "place",
	StateSatisfied:     "satisfied",
	StateDone:          "done",
	StateUnsupported:   "unsupported",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

package flow

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError lists every integrity problem found in a flow document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidFlow, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidFlow
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) has() bool {
	return len(e.Problems) > 0
}

func validate(def *Definition, verr *ValidationError) {
	if len(def.states) == 0 {
		verr.add("flow declares no states")
	}
	if _, ok := def.states[def.entry]; !ok {
		verr.add("entry state %s is not defined", def.entry)
	}
	if def.end != "" {
		if end, ok := def.states[def.end]; !ok {
			verr.add("end state %s is not defined", def.end)
		} else if len(end.Options) > 0 {
			verr.add("end state %s must not declare options", def.end)
		}
	}
	if def.pingToken != "" && def.pingToken == def.resetToken {
		verr.add("ping token %q equals the reset token", def.pingToken)
	}

	for _, id := range def.StateIDs() {
		st := def.states[id]
		if st.Final && len(st.Options) > 0 {
			verr.add("state %s is final but declares options", id)
		}
		if st.Final && st.Fallback == "" {
			verr.add("state %s is final and needs a fallback message", id)
		}
		for _, token := range st.OptionKeys() {
			tr := st.Options[token]
			if token == def.resetToken || (def.pingToken != "" && token == def.pingToken) {
				verr.add("state %s: option %q shadows a command token", id, token)
			}
			if tr.Target == "" {
				verr.add("state %s: option %q has no target", id, token)
				continue
			}
			if _, ok := def.states[tr.Target]; !ok {
				verr.add("state %s: option %q targets undefined state %s", id, token, tr.Target)
			}
		}
		if st.Media != nil {
			if !st.Media.Kind.Valid() {
				verr.add("state %s: unknown media kind %q", id, st.Media.Kind)
			}
			if strings.TrimSpace(st.Media.Source) == "" {
				verr.add("state %s: media source is empty", id)
			}
		}
	}
	sort.Strings(verr.Problems)
}

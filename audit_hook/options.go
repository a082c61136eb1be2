package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger used when the recorder fails.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithActions limits auditing to the listed actions.
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		e.only = actionSet(actions)
	}
}

// WithoutActions drops the listed actions; everything else is audited.
func WithoutActions(actions ...string) Option {
	return func(e *Extension) {
		if e.skip == nil {
			e.skip = make(map[string]struct{}, len(actions))
		}
		for _, a := range actions {
			e.skip[a] = struct{}{}
		}
	}
}

func actionSet(actions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// audits reports whether action passes the configured filters.
func (e *Extension) audits(action string) bool {
	if _, skipped := e.skip[action]; skipped {
		return false
	}
	if e.only == nil {
		return true
	}
	_, ok := e.only[action]
	return ok
}

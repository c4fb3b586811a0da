package extract

import (
	"context"
	"log/slog"
)

// Step is one attempt in a fallback chain.
type Step struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

// TryInOrder runs steps until one produces output the accept predicate
// takes. Intermediate failures are logged at warn level and swallowed;
// only the last step's outcome is returned when no step is accepted,
// so the chain stays best effort. The name of the step that produced
// the returned text is reported so results can record how they were
// obtained.
func TryInOrder(ctx context.Context, steps []Step, accept func(string) bool) (text, method string, err error) {
	for i, step := range steps {
		text, err = step.Run(ctx)
		if err == nil && accept(text) {
			return text, step.Name, nil
		}
		method = step.Name
		if i < len(steps)-1 {
			slog.Warn("extraction step rejected, falling back",
				"step", step.Name,
				"error", err,
				"output_len", len(text),
			)
		}
	}
	return text, method, err
}

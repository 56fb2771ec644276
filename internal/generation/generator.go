package generation

import "context"

// Generator turns a prompt into an encoded image.
type Generator interface {
	// Generate returns the PNG bytes for prompt, or an error wrapping one of
	// the sentinel errors in this package.
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Func adapts an ordinary function to the Generator interface.
type Func func(ctx context.Context, prompt string) ([]byte, error)

// Generate calls f(ctx, prompt).
func (f Func) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return f(ctx, prompt)
}

package schema

import "context"

// CompletionProvider is the single LLM capability the memory pipeline
// depends on: prompt in, text out. Provider implementations are free to
// speak any wire protocol behind this.
type CompletionProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	DefaultModel() string
}

// CompletionFunc adapts a plain function to CompletionProvider, mainly for
// tests and callbacks.
type CompletionFunc func(ctx context.Context, prompt string) (string, error)

func (f CompletionFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func (f CompletionFunc) DefaultModel() string { return "" }

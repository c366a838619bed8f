package pdfgen

import "context"

// Outcome is the eventual result of an asynchronous generation call.
type Outcome[T any] struct {
	Value T
	Err   error
}

// GeneratePdf runs GenerateOne in the background. The returned channel yields exactly one
// Outcome and is then closed. When cb is non-nil it is called with the same outcome first.
func (g *Generator) GeneratePdf(ctx context.Context, req Request, opts Options, cb func([]byte, error)) <-chan Outcome[[]byte] {
	return async(func() ([]byte, error) {
		return g.GenerateOne(ctx, req, opts)
	}, cb)
}

// GeneratePdfs runs GenerateMany in the background, with the same contract as GeneratePdf.
func (g *Generator) GeneratePdfs(ctx context.Context, files []File, opts Options, cb func([]Result, error)) <-chan Outcome[[]Result] {
	return async(func() ([]Result, error) {
		return g.GenerateMany(ctx, files, opts)
	}, cb)
}

func async[T any](run func() (T, error), cb func(T, error)) <-chan Outcome[T] {
	ch := make(chan Outcome[T], 1)
	go func() {
		defer close(ch)
		v, err := run()
		if cb != nil {
			cb(v, err)
		}
		ch <- Outcome[T]{Value: v, Err: err}
	}()
	return ch
}

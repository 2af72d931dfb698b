package docker

// Middleware processes one output line. Returning keep=false stops the
// chain and drops the line from the collected result.
type Middleware interface {
	Process(line string, stream Stream) (string, bool)
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(line string, stream Stream) (string, bool)

func (f MiddlewareFunc) Process(line string, stream Stream) (string, bool) {
	return f(line, stream)
}

// Chain runs middlewares in order. Lines from stdout and stderr arrive on
// separate goroutines, so every stage must be safe for concurrent use.
type Chain []Middleware

func (c Chain) Process(line string, stream Stream) (string, bool) {
	for _, m := range c {
		if m == nil {
			continue
		}

		var keep bool
		line, keep = m.Process(line, stream)
		if !keep {
			return line, false
		}
	}

	return line, true
}

// Passthrough keeps every line unchanged.
var Passthrough = MiddlewareFunc(func(line string, _ Stream) (string, bool) {
	return line, true
})

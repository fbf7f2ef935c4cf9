package socket

// Resolve flattens a descriptor into the concrete Config handed to the
// handshake engine. The tree is folded depth-first, left to right, into one
// accumulator: sub-protocol leaves append, every other leaf overwrites its
// field, Default contributes nothing. Because the fold order alone decides
// the outcome, any two trees with the same left-to-right leaf sequence
// resolve identically, which is what makes Combine associative.
//
// Resolve is a pure function: it never fails, never mutates the descriptor,
// and returns an equal Config every time it is called on the same input.
func Resolve(d Descriptor) *Config {
	cfg := &Config{
		HandleCloseFrames: true,
		DropPongFrames:    true,
		CheckPathPrefix:   true,
		Path:              "",
	}

	// An explicit stack instead of recursion: descriptor chains are built
	// by repeated Combine calls in loops, and a chain a few thousand deep
	// must not be able to overflow the goroutine stack. Children are
	// pushed right-then-left so the left subtree is visited first.
	stack := []Descriptor{d}
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch t := next.(type) {
		case concat:
			stack = append(stack, t.right, t.left)
		case defaultDescriptor:
		case subProtocol:
			cfg.SubProtocols = append(cfg.SubProtocols, t.name)
		case handshakeTimeout:
			ms := t.d.Milliseconds()
			cfg.HandshakeTimeoutMillis = &ms
		case forceCloseTimeout:
			ms := t.d.Milliseconds()
			cfg.ForceCloseTimeoutMillis = &ms
		case forwardCloseFrames:
			cfg.HandleCloseFrames = false
		case forwardPongFrames:
			cfg.DropPongFrames = false
		case closeWithStatus:
			status := t.status
			cfg.CloseFrameOnClosure = &status
		case closeWithCode:
			cfg.CloseFrameOnClosure = &CloseStatus{Code: t.code, Reason: t.reason}
		}
	}

	return cfg
}

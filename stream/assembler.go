package stream

// frameAssembler reconstructs whole frames from arbitrary-sized byte
// appends. Whole frames arriving on an empty buffer are handed to emit
// without copying; the callee must not retain the slice past the call.
type frameAssembler struct {
	buf    []byte
	offset int
	emit   func(frame []byte) error
}

func newFrameAssembler(frameBytes int, emit func([]byte) error) *frameAssembler {
	return &frameAssembler{
		buf:  make([]byte, frameBytes),
		emit: emit,
	}
}

// partial reports whether a partially assembled frame is in flight.
func (a *frameAssembler) partial() bool { return a.offset > 0 }

// append consumes data, emitting every completed frame in order. It
// returns the number of bytes consumed; consumption stops early only
// when emit fails.
func (a *frameAssembler) append(data []byte) (int, error) {
	frameBytes := len(a.buf)
	written := 0

	for written < len(data) {
		remaining := data[written:]

		switch {
		case a.offset > 0:
			// Add to, and possibly finish, a partial frame.
			n := copy(a.buf[a.offset:], remaining)
			a.offset += n
			written += n

			if a.offset == frameBytes {
				if err := a.emit(a.buf); err != nil {
					return written, err
				}
				a.offset = 0
			}

		case len(remaining) < frameBytes:
			// Begin a partial frame.
			a.offset = copy(a.buf, remaining)
			written += a.offset

		default:
			// At least one whole frame: emit it without copying.
			if err := a.emit(remaining[:frameBytes]); err != nil {
				return written, err
			}
			written += frameBytes
		}
	}

	return written, nil
}

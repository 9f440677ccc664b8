package viz

import (
	"sync/atomic"

	"github.com/san-kum/quadsim/internal/env"
)

// Recorder is an env.Renderer that forwards frames over a buffered
// channel. Draw never blocks the stepping goroutine; frames that do not
// fit are counted and dropped.
type Recorder struct {
	frames  chan env.Frame
	dropped atomic.Int64
}

func NewRecorder(buffer int) *Recorder {
	if buffer < 1 {
		buffer = 1
	}
	return &Recorder{frames: make(chan env.Frame, buffer)}
}

func (r *Recorder) Draw(f env.Frame) {
	select {
	case r.frames <- f:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) Frames() <-chan env.Frame { return r.frames }

// Drain returns every frame currently buffered without waiting.
func (r *Recorder) Drain() []env.Frame {
	var out []env.Frame
	for {
		select {
		case f := <-r.frames:
			out = append(out, f)
		default:
			return out
		}
	}
}

func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

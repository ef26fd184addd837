package registry

import "github.com/othnielvtf/livechat/pkg/state"

// history is a fixed-capacity FIFO ring over a room's messages. Eviction
// is by arrival order, O(1) per append. Callers synchronize through the
// owning room's mutex.
type history struct {
	buf   []state.Message
	start int
	n     int
}

func newHistory(limit int) *history {
	return &history{buf: make([]state.Message, limit)}
}

func (h *history) append(msg state.Message) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = msg
		h.n++
		return
	}
	// Full: overwrite the oldest slot and advance.
	h.buf[h.start] = msg
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history) list() []state.Message {
	out := make([]state.Message, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

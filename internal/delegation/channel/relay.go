package channel

import (
	"log/slog"
	"sync"

	"sheetport/internal/delegation"
)

// relay adapts a transport's raw payload stream into a Subscription. The
// transport pushes payloads with deliver and the relay decodes them.
type relay struct {
	out    chan delegation.Message
	stop   chan struct{}
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
	shutdown  func() error
}

func newRelay(logger *slog.Logger, shutdown func() error) *relay {
	return &relay{
		out:      make(chan delegation.Message, defaultBuffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger,
		shutdown: shutdown,
	}
}

// deliver decodes payload and forwards it. It reports false once the relay
// is stopping.
func (r *relay) deliver(payload []byte) bool {
	msg, err := decode(payload)
	if err != nil {
		r.logger.Warn("discarding malformed delegation message", "error", err)
		return true
	}
	select {
	case r.out <- msg:
		return true
	case <-r.stop:
		return false
	}
}

func (r *relay) stopping() <-chan struct{} {
	return r.stop
}

// finish must be called by the transport goroutine when it exits.
func (r *relay) finish() {
	close(r.out)
	close(r.done)
}

func (r *relay) Messages() <-chan delegation.Message {
	return r.out
}

func (r *relay) Close() error {
	r.closeOnce.Do(func() {
		close(r.stop)
		r.closeErr = r.shutdown()
		<-r.done
	})
	return r.closeErr
}

package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	e "github.com/hxann/radiotruyen/internal/errors"
	"github.com/hxann/radiotruyen/internal/logging"
)

// How long Close waits for the producer goroutine to exit after cancellation.
const producerJoinGrace = 5 * time.Second

// Chunk is a single piece of synthesized audio, or a synthesis failure.
type Chunk struct {
	Data []byte
	Err  error
}

// Synthesizer is the external speech service: given text it yields an ordered
// sequence of audio chunks on the returned channel, which is closed on
// completion. The service's protocol is opaque to the engine.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (<-chan Chunk, error)
}

type Config struct {
	// Max bytes of text per synthesis request.
	ChunkLimit int
	// Capacity of the producer->consumer frame queue.
	QueueCapacity int
	// Wall-clock bound on synthesizing one text chunk.
	ChunkTimeout time.Duration
	// How long a Next call waits for a frame before declaring the
	// producer dead.
	ConsumerTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ChunkLimit <= 0 {
		c.ChunkLimit = 2500
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 100
	}
	if c.ChunkTimeout <= 0 {
		c.ChunkTimeout = 60 * time.Second
	}
	if c.ConsumerTimeout <= 0 {
		c.ConsumerTimeout = 30 * time.Second
	}
	return c
}

// Engine turns chapter text into a stream of audio frames. Each Stream runs
// one producer goroutine that synthesizes text chunk by chunk and a consumer
// (the caller) that pulls frames; the two only meet at a bounded queue, so a
// stalled synthesis call never blocks the caller past its own timeout and
// vice versa.
type Engine struct {
	synth Synthesizer
	cfg   Config
}

func NewEngine(synth Synthesizer, cfg Config) *Engine {
	return &Engine{synth: synth, cfg: cfg.withDefaults()}
}

// queueItem is what travels from producer to consumer: exactly one of a
// frame, a terminal error, or end-of-stream.
type queueItem struct {
	frame []byte
	err   error
	eos   bool
}

type Stream struct {
	ctx             context.Context
	items           chan queueItem
	cancel          context.CancelFunc
	producerDone    chan struct{}
	consumerTimeout time.Duration
	logger          *slog.Logger
	closeOnce       sync.Once
}

// Stream starts a producer goroutine for text and returns the consumer
// handle. The caller must call Close when done, whether the stream ended
// cleanly or not.
func (eng *Engine) Stream(ctx context.Context, text string) *Stream {
	producerCtx, cancel := context.WithCancel(ctx)

	s := &Stream{
		ctx:             producerCtx,
		items:           make(chan queueItem, eng.cfg.QueueCapacity),
		cancel:          cancel,
		producerDone:    make(chan struct{}),
		consumerTimeout: eng.cfg.ConsumerTimeout,
		logger:          logging.FromContext(ctx),
	}

	go eng.produce(producerCtx, text, s)

	return s
}

func (eng *Engine) produce(ctx context.Context, text string, s *Stream) {
	defer close(s.producerDone)

	for _, chunk := range ChunkText(text, eng.cfg.ChunkLimit) {
		if err := eng.produceChunk(ctx, chunk, s); err != nil {
			if errors.Is(err, context.Canceled) {
				// The consumer observes the cancellation through the
				// stream context, no error item is needed.
				return
			}
			s.push(queueItem{err: err})
			return
		}
	}

	s.push(queueItem{eos: true})
}

// produceChunk synthesizes one text chunk and forwards its frames, bounded by
// the per-chunk wall-clock timeout.
func (eng *Engine) produceChunk(ctx context.Context, text string, s *Stream) error {
	ctx, cancel := context.WithTimeout(ctx, eng.cfg.ChunkTimeout)
	defer cancel()

	chunks, err := eng.synth.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("%w: %w", eng.terminalError(ctx, err), err)
	}

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			if chunk.Err != nil {
				return fmt.Errorf("%w: %w", eng.terminalError(ctx, chunk.Err), chunk.Err)
			}
			s.push(queueItem{frame: chunk.Data})
		case <-ctx.Done():
			return eng.terminalError(ctx, ctx.Err())
		}
	}
}

func (eng *Engine) terminalError(ctx context.Context, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return e.ErrSynthesisTimeout
	}
	if errors.Is(cause, context.Canceled) {
		return context.Canceled
	}
	return e.ErrSynthesisFailure
}

// push enqueues without ever blocking the producer. When the queue is full
// the single oldest frame is dropped to make room: forward progress and
// bounded memory are preferred over completeness, on the assumption that the
// consumer normally drains faster than synthesis produces.
func (s *Stream) push(it queueItem) {
	select {
	case s.items <- it:
		return
	default:
	}

	s.logger.Warn("TTS frame queue is full, discarding oldest frame")
	select {
	case <-s.items:
	default:
	}
	select {
	case s.items <- it:
	default:
	}
}

// Next returns the next audio frame in order. io.EOF marks clean completion.
// Cancellation of the stream's context surfaces immediately as the context
// error. When nothing arrives within the consumer timeout the producer is
// presumed dead and ErrConsumerStarved is returned.
func (s *Stream) Next() ([]byte, error) {
	timeout := time.NewTimer(s.consumerTimeout)
	defer timeout.Stop()

	select {
	case it := <-s.items:
		if it.eos {
			return nil, io.EOF
		}
		if it.err != nil {
			return nil, it.err
		}
		return it.frame, nil
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case <-timeout.C:
		s.logger.Error("TTS consumer timed out, producer is unresponsive or dead")
		return nil, e.ErrConsumerStarved
	}
}

// Close tears the stream down: cancels the producer, drains any queued
// frames, and waits up to a grace period for the producer to exit. Safe to
// call more than once and after any Next error, including on client
// disconnect mid-stream.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()

		for {
			select {
			case <-s.items:
				continue
			default:
			}
			break
		}

		select {
		case <-s.producerDone:
		case <-time.After(producerJoinGrace):
			s.logger.Warn("TTS producer did not exit within the grace period")
		}
	})
}

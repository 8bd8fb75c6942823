// Package verify decides whether one image holds a QR code a real-world
// scanner could read, by sweeping preprocessing variants and stopping at
// the first successful decode.
package verify

import (
	"context"
	"errors"
	"math/rand"

	"go.uber.org/zap"

	"github.com/wanghaisheng/brand-qr-checker-verify/internal/imageproc"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/logging"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/preprocess"
)

// Request carries everything needed to verify one image. It is built once
// per file and consumed once; Source is never mutated.
type Request struct {
	Source       []byte
	ResizeTarget int
	Candidates   []preprocess.Spec
}

// Outcome is the terminal verdict for one request. Decoded false means the
// image is not scannable under any attempted variant.
type Outcome struct {
	Text    string
	Decoded bool
}

// attemptResult makes the per-candidate policy explicit: only a success
// stops the sweep, both a non-match and an attempt error continue.
type attemptResult int

const (
	attemptSuccess attemptResult = iota
	attemptNoMatch
	attemptError
)

// Sequencer tries each candidate variant in a random permutation against
// the decode primitive and short-circuits on the first success.
type Sequencer struct {
	decoder     imageproc.Decoder
	transformer imageproc.Transformer
	logger      *zap.Logger

	// shuffle permutes candidate indices; swappable for deterministic tests.
	shuffle func(n int, swap func(i, j int))
}

// NewSequencer constructs a sequencer around the decode and transform
// primitives.
func NewSequencer(decoder imageproc.Decoder, transformer imageproc.Transformer, logger *zap.Logger) *Sequencer {
	return &Sequencer{
		decoder:     decoder,
		transformer: transformer,
		logger:      logger.Named("sequencer"),
		shuffle:     rand.Shuffle,
	}
}

// Verify runs the sweep for one request. Every request resolves to exactly
// one Outcome; per-candidate transform or decode failures are absorbed and
// the sweep moves on. An empty candidate list falls back to the identity
// spec so the unmodified image is always tried.
func (s *Sequencer) Verify(ctx context.Context, taskID string, req *Request) Outcome {
	opLogger := logging.WithOperation(s.logger, "verify.sweep", taskID)

	candidates := req.Candidates
	if len(candidates) == 0 {
		candidates = []preprocess.Spec{{}}
	}

	// Uniform permutation, independent per file, so no axis combination is
	// systematically tried first or last.
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	s.shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	for attempt, idx := range order {
		if ctx.Err() != nil {
			opLogger.Warn("sweep canceled", zap.Int("attempts", attempt))
			return Outcome{}
		}

		spec := candidates[idx]
		text, result := s.attempt(ctx, opLogger, req, spec)
		if result == attemptSuccess {
			opLogger.Debug("decoded",
				zap.Int("attempts", attempt+1),
				zap.Int("candidates", len(candidates)),
				zap.Stringer("variant", spec))
			return Outcome{Text: text, Decoded: true}
		}
	}

	opLogger.Debug("exhausted all candidates", zap.Int("candidates", len(candidates)))
	return Outcome{}
}

// attempt derives one transformed buffer and submits it to the decoder.
func (s *Sequencer) attempt(ctx context.Context, opLogger *zap.Logger, req *Request, spec preprocess.Spec) (string, attemptResult) {
	derived, err := s.transformer.Apply(ctx, req.Source, req.ResizeTarget, spec)
	if err != nil {
		opLogger.Debug("transform failed", zap.Stringer("variant", spec), zap.Error(err))
		return "", attemptError
	}

	text, err := s.decoder.Decode(ctx, derived)
	if err != nil {
		if errors.Is(err, imageproc.ErrNoCode) {
			return "", attemptNoMatch
		}
		opLogger.Debug("decode failed", zap.Stringer("variant", spec), zap.Error(err))
		return "", attemptError
	}
	if text == "" {
		return "", attemptNoMatch
	}
	return text, attemptSuccess
}

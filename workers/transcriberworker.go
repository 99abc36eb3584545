// Package workers holds the per-session pipeline stages: the recognition
// feeder, the transcript aggregator, the turn dispatcher and the reply
// speaker.
package workers

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/metrics"
	"github.com/mrsingh-rishi/voice-moderator/relay"
	"github.com/mrsingh-rishi/voice-moderator/stt"
)

// TranscriberWorker feeds audio from the relay into a recognition stream.
type TranscriberWorker struct {
	relay   *relay.Relay
	stream  stt.Stream
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewTranscriberWorker(r *relay.Relay, stream stt.Stream, logger *zap.SugaredLogger, m *metrics.Metrics) (*TranscriberWorker, error) {
	if r == nil {
		return nil, errors.New("relay is required")
	}
	if stream == nil {
		return nil, errors.New("recognition stream is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &TranscriberWorker{relay: r, stream: stream, logger: logger, metrics: m}, nil
}

// Run pulls chunks until the relay is closed and forwards them in order.
// The send side of the stream is always closed on return so the engine
// can flush its last results.
func (tw *TranscriberWorker) Run(ctx context.Context) error {
	defer func() {
		if err := tw.stream.CloseSend(); err != nil {
			tw.logger.Debugw("close send failed", "error", err)
		}
	}()

	for {
		chunk, err := tw.relay.Pull(ctx)
		if err == io.EOF {
			tw.logger.Debug("audio relay closed")
			return nil
		}
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			continue
		}
		if err := tw.stream.Send(ctx, chunk); err != nil {
			return errors.Wrap(err, "send audio")
		}
		tw.metrics.AudioChunk()
	}
}

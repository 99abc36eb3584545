// Command voiceclient streams raw PCM to a voice-moderator server and plays
// the spoken replies one after another.
//
//	ffmpeg -f avfoundation -i ":0" -ac 1 -ar 16000 -f s16le - | voiceclient -in -
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/logging"
	"github.com/mrsingh-rishi/voice-moderator/playback"
	"github.com/mrsingh-rishi/voice-moderator/protocol"
)

type options struct {
	server     string
	in         string
	sampleRate int
	frameMS    int
	realtime   bool
	outDir     string
	player     string
	linger     time.Duration
	debug      bool
}

func main() {
	var opt options
	flag.StringVar(&opt.server, "server", "ws://localhost:3000/ws", "Server websocket URL")
	flag.StringVar(&opt.in, "in", "-", "Raw s16le mono PCM input file, - for stdin")
	flag.IntVar(&opt.sampleRate, "sample-rate", 16000, "Input sample rate in Hz")
	flag.IntVar(&opt.frameMS, "frame-ms", 100, "Audio frame duration in ms")
	flag.BoolVar(&opt.realtime, "realtime", true, "Pace file input at real time")
	flag.StringVar(&opt.outDir, "out-dir", "", "Write replies to this directory instead of playing them")
	flag.StringVar(&opt.player, "player", "ffplay", "Player command reading audio on stdin")
	flag.DurationVar(&opt.linger, "linger", 10*time.Second, "How long to wait for late replies after the stream stopped")
	flag.BoolVar(&opt.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	level := "info"
	if opt.debug {
		level = "debug"
	}
	logger := logging.NewDevelopment(level)
	defer logger.Sync()

	if err := run(opt, logger); err != nil {
		logger.Errorw("voiceclient failed", "error", err)
		os.Exit(1)
	}
}

func run(opt options, logger *zap.SugaredLogger) error {
	input, err := openInput(opt.in)
	if err != nil {
		return err
	}
	defer input.Close()

	conn, _, err := websocket.DefaultDialer.Dial(opt.server, nil)
	if err != nil {
		return errors.Wrapf(err, "dial %s", opt.server)
	}
	defer conn.Close()

	var renderer playback.Renderer
	if opt.outDir != "" {
		renderer = &playback.FileRenderer{Dir: opt.outDir}
	} else {
		r := playback.FFPlay()
		r.Command = opt.player
		renderer = r
	}
	player, err := playback.NewSequencer(renderer, logger)
	if err != nil {
		return err
	}
	defer player.Close()

	// gorilla connections allow one concurrent writer
	var writeMu sync.Mutex
	send := func(kind int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(kind, data)
	}
	sendEvent := func(event protocol.Event, payload interface{}) error {
		data, err := protocol.Marshal(event, payload)
		if err != nil {
			return err
		}
		return send(websocket.TextMessage, data)
	}

	if err := sendEvent(protocol.EventStartStream, protocol.StartStreamPayload{SampleRate: opt.sampleRate}); err != nil {
		return errors.Wrap(err, "start stream")
	}

	stopped := make(chan struct{})
	readDone := make(chan error, 1)
	go func() { readDone <- readLoop(conn, player, stopped, logger) }()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	streamDone := make(chan error, 1)
	go func() { streamDone <- streamAudio(input, opt, send) }()

	select {
	case err := <-streamDone:
		if err != nil {
			logger.Warnw("audio input ended with error", "error", err)
		}
	case <-sigs:
		logger.Info("interrupted, stopping stream")
	case err := <-readDone:
		return err
	}
	if err := sendEvent(protocol.EventStopStream, nil); err != nil {
		return errors.Wrap(err, "stop stream")
	}

	select {
	case <-stopped:
	case err := <-readDone:
		return err
	case <-time.After(opt.linger):
		logger.Warn("server did not confirm stop")
	}
	// replies to the last turns may still be on their way
	select {
	case <-time.After(opt.linger):
	case <-sigs:
	case err := <-readDone:
		if err != nil {
			return err
		}
	}
	player.Wait()
	_ = send(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open input")
	}
	return f, nil
}

// streamAudio sends input as binary frames of frameMS each.
func streamAudio(input io.Reader, opt options, send func(int, []byte) error) error {
	frameBytes := opt.sampleRate * 2 * opt.frameMS / 1000
	if frameBytes <= 0 {
		return errors.New("invalid frame size")
	}
	interval := time.Duration(opt.frameMS) * time.Millisecond
	reader := bufio.NewReaderSize(input, frameBytes*4)
	buf := make([]byte, frameBytes)
	for {
		n, err := io.ReadFull(reader, buf)
		if n > 0 {
			frame := append([]byte(nil), buf[:n]...)
			if err := send(websocket.BinaryMessage, frame); err != nil {
				return errors.Wrap(err, "send audio")
			}
			if opt.realtime && opt.in != "-" {
				time.Sleep(interval)
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read input")
		}
	}
}

// readLoop prints server events and queues reply audio for playback.
func readLoop(conn *websocket.Conn, player *playback.Sequencer, stopped chan<- struct{}, logger *zap.SugaredLogger) error {
	var stopOnce sync.Once
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read")
		}
		if kind == websocket.BinaryMessage {
			logger.Debugw("reply audio", "bytes", len(data))
			player.Enqueue(data)
			continue
		}

		event, raw, err := protocol.Unmarshal(data)
		if err != nil {
			logger.Warnw("malformed server message", "error", err)
			continue
		}
		switch event {
		case protocol.EventTranscription:
			p, err := protocol.UnmarshalPayload[protocol.TranscriptionPayload](raw)
			if err != nil {
				continue
			}
			if p.IsPartial {
				fmt.Printf("\r… %s", p.Transcript)
			} else {
				fmt.Printf("\rYou: %s\n", p.Transcript)
			}
		case protocol.EventAIResponse:
			p, err := protocol.UnmarshalPayload[protocol.AIResponsePayload](raw)
			if err == nil {
				fmt.Printf("AI: %s\n", p.Text)
			}
		case protocol.EventError:
			p, err := protocol.UnmarshalPayload[protocol.ErrorPayload](raw)
			if err == nil {
				logger.Errorw("server error", "message", p.Message)
			}
		case protocol.EventStreamStopped:
			logger.Info("stream stopped")
			stopOnce.Do(func() { close(stopped) })
		default:
			logger.Debugw("ignoring event", "event", event)
		}
	}
}

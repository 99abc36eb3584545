package workers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsingh-rishi/voice-moderator/history"
	"github.com/mrsingh-rishi/voice-moderator/llm"
	llmmocks "github.com/mrsingh-rishi/voice-moderator/llm/mocks"
	"github.com/mrsingh-rishi/voice-moderator/model"
	"github.com/mrsingh-rishi/voice-moderator/relay"
	"github.com/mrsingh-rishi/voice-moderator/tts"
	ttsmocks "github.com/mrsingh-rishi/voice-moderator/tts/mocks"
)

type recordingEmitter struct {
	mu          sync.Mutex
	transcripts []model.TranscriptEvent
	replies     []string
	audio       [][]byte
	errors      []string
	stopped     int
}

func (e *recordingEmitter) Transcript(ev model.TranscriptEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transcripts = append(e.transcripts, ev)
	return nil
}

func (e *recordingEmitter) Reply(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replies = append(e.replies, text)
	return nil
}

func (e *recordingEmitter) Audio(audio []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audio = append(e.audio, audio)
	return nil
}

func (e *recordingEmitter) Error(message string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = append(e.errors, message)
	return nil
}

func (e *recordingEmitter) Stopped() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped++
	return nil
}

type turnRecorder struct {
	mu    sync.Mutex
	turns []string
}

func (r *turnRecorder) finalize(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, text)
}

func (r *turnRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.turns...)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("final", time.Second)
	require.NoError(t, err)
	assert.Equal(t, EveryFinal{}, p)

	p, err = ParsePolicy("silence", time.Second)
	require.NoError(t, err)
	assert.Equal(t, SilenceWindow{Window: time.Second}, p)

	p, err = ParsePolicy("punctuation", time.Second)
	require.NoError(t, err)
	assert.Equal(t, Punctuation{Window: time.Second}, p)

	_, err = ParsePolicy("vad", time.Second)
	assert.Error(t, err)
}

func TestPunctuationHold(t *testing.T) {
	p := Punctuation{Window: time.Second}
	assert.Equal(t, time.Duration(0), p.Hold([]string{"When does it start?"}))
	assert.Equal(t, time.Duration(0), p.Hold([]string{"so", "that's great!"}))
	assert.Equal(t, time.Second, p.Hold([]string{"and the venue is"}))
	assert.Equal(t, time.Second, p.Hold(nil))
}

func TestTranscriptionWorkerEveryFinal(t *testing.T) {
	out := &recordingEmitter{}
	rec := &turnRecorder{}
	tw, err := NewTranscriptionWorker(EveryFinal{}, out, rec.finalize, nil)
	require.NoError(t, err)

	tw.Handle(model.TranscriptEvent{Text: "what time", IsPartial: true})
	assert.Empty(t, rec.get())

	tw.Handle(model.TranscriptEvent{Text: "What time does the event start?"})
	tw.Handle(model.TranscriptEvent{Text: "  "})
	tw.Handle(model.TranscriptEvent{Text: "Where is it?"})

	assert.Equal(t, []string{"What time does the event start?", "Where is it?"}, rec.get())
	assert.Empty(t, tw.Pending())
	assert.Len(t, out.transcripts, 4)
	assert.True(t, out.transcripts[0].IsPartial)
}

func TestTranscriptionWorkerSilenceWindowJoinsFragments(t *testing.T) {
	out := &recordingEmitter{}
	rec := &turnRecorder{}
	tw, err := NewTranscriptionWorker(SilenceWindow{Window: 50 * time.Millisecond}, out, rec.finalize, nil)
	require.NoError(t, err)

	tw.Handle(model.TranscriptEvent{Text: "tell me"})
	tw.Handle(model.TranscriptEvent{Text: "about", IsPartial: true})
	tw.Handle(model.TranscriptEvent{Text: "about the tickets"})
	assert.Equal(t, []string{"tell me", "about the tickets"}, tw.Pending())

	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"tell me about the tickets"}, rec.get())
	assert.Empty(t, tw.Pending())
}

func TestTranscriptionWorkerRunFlushesOnClose(t *testing.T) {
	rec := &turnRecorder{}
	tw, err := NewTranscriptionWorker(SilenceWindow{Window: time.Hour}, &recordingEmitter{}, rec.finalize, nil)
	require.NoError(t, err)

	events := make(chan model.TranscriptEvent, 2)
	events <- model.TranscriptEvent{Text: "one"}
	events <- model.TranscriptEvent{Text: "two"}
	close(events)

	tw.Run(events)
	assert.Equal(t, []string{"one two"}, rec.get())
}

func TestNewTranscriptionWorkerValidation(t *testing.T) {
	_, err := NewTranscriptionWorker(nil, nil, func(string) {}, nil)
	assert.EqualError(t, err, "output is required")
	_, err = NewTranscriptionWorker(nil, &recordingEmitter{}, nil, nil)
	assert.EqualError(t, err, "finalize callback is required")
}

type fakeStream struct {
	mu        sync.Mutex
	sent      []model.AudioChunk
	closeSent bool
	events    chan model.TranscriptEvent
}

func (s *fakeStream) Send(_ context.Context, chunk model.AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, chunk)
	return nil
}

func (s *fakeStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeSent = true
	return nil
}

func (s *fakeStream) Events() <-chan model.TranscriptEvent { return s.events }
func (s *fakeStream) Err() error                           { return nil }
func (s *fakeStream) Close() error                         { return nil }

func TestTranscriberWorkerForwardsInOrder(t *testing.T) {
	r := relay.New()
	stream := &fakeStream{}
	tw, err := NewTranscriberWorker(r, stream, nil, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- tw.Run(context.Background()) }()

	for i := 0; i < 5; i++ {
		r.Push(model.AudioChunk{byte(i)})
	}
	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return len(stream.sent) == 5
	}, time.Second, 5*time.Millisecond)
	r.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("feeder did not stop after relay close")
	}
	for i, chunk := range stream.sent {
		assert.Equal(t, model.AudioChunk{byte(i)}, chunk)
	}
	assert.True(t, stream.closeSent)
}

type dispatcherFixture struct {
	gen    *llmmocks.MockGenerator
	synth  *ttsmocks.MockSynthesizer
	ledger *history.Ledger
	out    *recordingEmitter
	agent  *AgentWorker
}

func newDispatcher(t *testing.T, cfg AgentConfig) *dispatcherFixture {
	ctrl := gomock.NewController(t)
	f := &dispatcherFixture{
		gen:    llmmocks.NewMockGenerator(ctrl),
		synth:  ttsmocks.NewMockSynthesizer(ctrl),
		ledger: history.NewLedger(history.DefaultCap),
		out:    &recordingEmitter{},
	}
	f.gen.EXPECT().Name().Return("fake-llm").AnyTimes()
	f.synth.EXPECT().Name().Return("fake-tts").AnyTimes()

	speaker, err := NewAgentResponseWorker(f.synth, tts.BrowserVoice("Matthew", "neural"), f.out, nil, nil)
	require.NoError(t, err)
	f.agent, err = NewAgentWorker(f.gen, f.ledger, speaker, f.out, cfg, nil, nil)
	require.NoError(t, err)
	return f
}

func TestDispatchSingleTurn(t *testing.T) {
	f := newDispatcher(t, AgentConfig{SystemPrompt: "moderate"})
	question := "What time does the event start?"
	reply := "Doors open at 8 AM!"

	f.gen.EXPECT().Generate(gomock.Any(), llm.Request{
		SystemPrompt: "moderate",
		History:      []model.ConversationTurn{model.UserTurn(question)},
	}).Return(reply, nil)
	f.synth.EXPECT().Synthesize(gomock.Any(), reply, gomock.Any()).Return([]byte("mp3"), nil).Times(1)

	f.agent.Dispatch(context.Background(), question)
	f.agent.Wait()

	assert.Equal(t, []model.ConversationTurn{
		model.UserTurn(question),
		model.AssistantTurn(reply),
	}, f.ledger.Snapshot())
	assert.Equal(t, []string{reply}, f.out.replies)
	assert.Equal(t, [][]byte{[]byte("mp3")}, f.out.audio)
}

func TestDispatchGenerationErrorDropsTurn(t *testing.T) {
	f := newDispatcher(t, AgentConfig{})
	f.gen.EXPECT().Generate(gomock.Any(), gomock.Any()).
		Return("", model.NewGenerationError("fake-llm", assert.AnError, "invoke"))
	f.synth.EXPECT().Synthesize(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	f.agent.Dispatch(context.Background(), "hello?")
	f.agent.Wait()

	assert.Equal(t, []model.ConversationTurn{model.UserTurn("hello?")}, f.ledger.Snapshot())
	assert.Empty(t, f.out.replies)
	assert.Empty(t, f.out.audio)
	assert.Empty(t, f.out.errors)
}

func TestDispatchSynthesisErrorKeepsReply(t *testing.T) {
	f := newDispatcher(t, AgentConfig{})
	f.gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("See you there.", nil)
	f.synth.EXPECT().Synthesize(gomock.Any(), "See you there.", gomock.Any()).
		Return(nil, model.NewSynthesisError("fake-tts", assert.AnError, "synthesize"))

	f.agent.Dispatch(context.Background(), "bye")
	f.agent.Wait()

	assert.Equal(t, []model.ConversationTurn{
		model.UserTurn("bye"),
		model.AssistantTurn("See you there."),
	}, f.ledger.Snapshot())
	assert.Equal(t, []string{"See you there."}, f.out.replies)
	assert.Empty(t, f.out.audio)
}

func TestDispatchKeepsLastTwentyTurns(t *testing.T) {
	f := newDispatcher(t, AgentConfig{})
	f.gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("ok", nil).Times(21)
	f.synth.EXPECT().Synthesize(gomock.Any(), gomock.Any(), gomock.Any()).Return([]byte{1}, nil).Times(21)

	for i := 1; i <= 21; i++ {
		f.agent.Dispatch(context.Background(), "turn "+string(rune('A'+i-1)))
		f.agent.Wait()
	}

	snap := f.ledger.Snapshot()
	require.Len(t, snap, 20)
	// 42 turns were appended; the oldest 22 are gone.
	assert.Equal(t, model.UserTurn("turn L"), snap[0])
	assert.Equal(t, model.UserTurn("turn U"), snap[18])
	assert.Equal(t, model.AssistantTurn("ok"), snap[19])
}

func TestDispatchAppendsUserTurnsInFinalizeOrder(t *testing.T) {
	f := newDispatcher(t, AgentConfig{})
	release := make(chan struct{})
	f.gen.EXPECT().Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req llm.Request) (string, error) {
			<-release
			return "reply to " + req.History[len(req.History)-1].Text, nil
		}).Times(2)
	f.synth.EXPECT().Synthesize(gomock.Any(), gomock.Any(), gomock.Any()).Return([]byte{1}, nil).Times(2)

	f.agent.Dispatch(context.Background(), "first")
	f.agent.Dispatch(context.Background(), "second")
	assert.Equal(t, []model.ConversationTurn{
		model.UserTurn("first"),
		model.UserTurn("second"),
	}, f.ledger.Snapshot())

	close(release)
	f.agent.Wait()
	assert.Equal(t, 4, f.ledger.Len())
}

func TestDispatchMaxInFlight(t *testing.T) {
	f := newDispatcher(t, AgentConfig{MaxInFlight: 1})
	var active, peak int32
	f.gen.EXPECT().Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req llm.Request) (string, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return "ok", nil
		}).Times(4)
	f.synth.EXPECT().Synthesize(gomock.Any(), gomock.Any(), gomock.Any()).Return([]byte{1}, nil).Times(4)

	for i := 0; i < 4; i++ {
		f.agent.Dispatch(context.Background(), "q")
	}
	f.agent.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestDispatchIgnoresBlankText(t *testing.T) {
	f := newDispatcher(t, AgentConfig{})
	f.agent.Dispatch(context.Background(), "   ")
	f.agent.Wait()
	assert.Zero(t, f.ledger.Len())
}

func TestDispatchMaxInFlightKeepsOrderAndHistory(t *testing.T) {
	f := newDispatcher(t, AgentConfig{MaxInFlight: 1})

	var mu sync.Mutex
	var order []string
	var histories [][]model.ConversationTurn
	f.gen.EXPECT().Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req llm.Request) (string, error) {
			last := req.History[len(req.History)-1].Text
			mu.Lock()
			order = append(order, last)
			histories = append(histories, req.History)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			return "reply to " + last, nil
		}).Times(8)
	f.synth.EXPECT().Synthesize(gomock.Any(), gomock.Any(), gomock.Any()).Return([]byte{1}, nil).Times(8)

	var want []string
	for i := 0; i < 8; i++ {
		q := fmt.Sprintf("q%d", i)
		want = append(want, q)
		f.agent.Dispatch(context.Background(), q)
	}
	f.agent.Wait()

	assert.Equal(t, want, order)
	for i := 1; i < len(histories); i++ {
		h := histories[i]
		require.GreaterOrEqual(t, len(h), 2)
		assert.Equal(t, model.AssistantTurn("reply to "+want[i-1]), h[len(h)-2], "turn %d", i)
	}
	var replies []string
	for _, q := range want {
		replies = append(replies, "reply to "+q)
	}
	assert.Equal(t, replies, f.out.replies)
	snap := f.ledger.Snapshot()
	require.Len(t, snap, 16)
	for i, q := range want {
		assert.Equal(t, model.UserTurn(q), snap[2*i])
		assert.Equal(t, model.AssistantTurn("reply to "+q), snap[2*i+1])
	}
}

func TestTranscriptionWorkerFinalizesInTakeOrder(t *testing.T) {
	rec := &turnRecorder{}
	tw, err := NewTranscriptionWorker(Punctuation{Window: time.Millisecond}, &recordingEmitter{}, rec.finalize, nil)
	require.NoError(t, err)

	const rounds = 200
	for i := 0; i < rounds; i++ {
		tw.Handle(model.TranscriptEvent{Text: fmt.Sprintf("alpha-%03d", i)})
		time.Sleep(time.Duration(i%3) * 500 * time.Microsecond)
		tw.Handle(model.TranscriptEvent{Text: fmt.Sprintf("bravo-%03d?", i)})
	}
	tw.Flush()

	turns := rec.get()
	index := func(token string) int {
		for i, turn := range turns {
			if strings.Contains(turn, token) {
				return i
			}
		}
		return -1
	}
	for i := 0; i < rounds; i++ {
		a := index(fmt.Sprintf("alpha-%03d", i))
		b := index(fmt.Sprintf("bravo-%03d?", i))
		require.NotEqual(t, -1, a, "round %d", i)
		require.NotEqual(t, -1, b, "round %d", i)
		assert.LessOrEqual(t, a, b, "round %d finalized out of order", i)
		if i > 0 {
			assert.Less(t, index(fmt.Sprintf("bravo-%03d?", i-1)), a, "round %d", i)
		}
	}
}

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/call"
	"github.com/mrsingh-rishi/voice-moderator/config"
	"github.com/mrsingh-rishi/voice-moderator/llm"
	"github.com/mrsingh-rishi/voice-moderator/metrics"
	"github.com/mrsingh-rishi/voice-moderator/stt"
	"github.com/mrsingh-rishi/voice-moderator/tts"
)

type nopRecognizer struct{}

func (nopRecognizer) Name() string { return "nop" }
func (nopRecognizer) Open(context.Context, stt.StreamConfig) (stt.Stream, error) {
	return nil, errors.New("not used")
}

type nopGenerator struct{}

func (nopGenerator) Name() string                                          { return "nop" }
func (nopGenerator) Generate(context.Context, llm.Request) (string, error) { return "", nil }

type nopSynthesizer struct{}

func (nopSynthesizer) Name() string { return "nop" }
func (nopSynthesizer) Synthesize(context.Context, string, tts.Voice) ([]byte, error) {
	return nil, nil
}

type fakeCalls struct {
	params *openapi.CreateCallParams
	err    error
}

func (f *fakeCalls) CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "CA123"
	return &openapi.ApiV2010Call{Sid: &sid}, nil
}

func newTestServer(t *testing.T, calls CallCreator) *server {
	cfg, err := config.FromEnv(func(string) string { return "" })
	require.NoError(t, err)
	cfg.Twilio = config.Twilio{
		AccountSID: "AC1",
		AuthToken:  "token",
		FromNumber: "+15550100",
		BaseURL:    "https://voice.example.test",
		BaseWSURL:  "wss://voice.example.test/",
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SessionStarted()
	handler, err := call.NewHandler(call.Engines{
		Recognizer:  nopRecognizer{},
		Generator:   nopGenerator{},
		Synthesizer: nopSynthesizer{},
	}, call.Settings{}, nil, m)
	require.NoError(t, err)

	srv := &server{
		ctx:      context.Background(),
		cfg:      cfg,
		handler:  handler,
		gatherer: reg,
		logger:   zap.NewNop().Sugar(),
	}
	if calls != nil {
		srv.calls = calls
	}
	return srv
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestHealthz(t *testing.T) {
	app := newTestServer(t, nil).routes()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body(t, resp))
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestServer(t, nil).routes()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "voice_sessions_active 1")
}

func TestWebSocketRoutesRequireUpgrade(t *testing.T) {
	app := newTestServer(t, &fakeCalls{}).routes()
	for _, path := range []string{"/ws", "/twilio/stream"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode, path)
	}
}

func TestTelephonyRoutesNeedTwilio(t *testing.T) {
	app := newTestServer(t, nil).routes()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/twiml?CallSid=CA1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateCall(t *testing.T) {
	calls := &fakeCalls{}
	app := newTestServer(t, calls).routes()

	req := httptest.NewRequest(http.MethodPost, "/call", strings.NewReader(`{"to":"+15550199"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"sid":"CA123","message":"call initiated"}`, body(t, resp))

	require.NotNil(t, calls.params)
	assert.Equal(t, "+15550199", *calls.params.To)
	assert.Equal(t, "+15550100", *calls.params.From)
	assert.Equal(t, "https://voice.example.test/twiml", *calls.params.Url)
}

func TestCreateCallValidation(t *testing.T) {
	app := newTestServer(t, &fakeCalls{}).routes()

	req := httptest.NewRequest(http.MethodPost, "/call", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/call", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateCallTwilioFailure(t *testing.T) {
	app := newTestServer(t, &fakeCalls{err: errors.New("rate limited")}).routes()
	req := httptest.NewRequest(http.MethodPost, "/call", strings.NewReader(`{"to":"+15550199"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestTwiML(t *testing.T) {
	app := newTestServer(t, &fakeCalls{}).routes()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/twiml", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/twiml?CallSid=CA1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), `<Stream url="wss://voice.example.test/twilio/stream?CallSid=CA1"/>`)
}

func TestVoices(t *testing.T) {
	cfg, err := config.FromEnv(func(string) string { return "" })
	require.NoError(t, err)
	browser, phone := voices(cfg)
	assert.Equal(t, tts.Voice{ID: "Matthew", Engine: "neural", Format: tts.FormatMP3}, browser)
	assert.Equal(t, 8000, phone.SampleRate)
}

package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/call"
	"github.com/mrsingh-rishi/voice-moderator/config"
	"github.com/mrsingh-rishi/voice-moderator/metrics"
)

type callRequest struct {
	To string `json:"to"`
}

type callResponse struct {
	SID     string `json:"sid,omitempty"`
	Message string `json:"message"`
}

// CallCreator places outbound calls. It is satisfied by the Twilio REST
// client's Api service.
type CallCreator interface {
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
}

type server struct {
	ctx      context.Context
	cfg      config.Config
	handler  *call.Handler
	gatherer prometheus.Gatherer
	calls    CallCreator
	logger   *zap.SugaredLogger
}

// routes builds the fiber app. The telephony routes are mounted only when
// calls is set.
func (s *server) routes() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
	})
	app.Use(cors.New(cors.Config{AllowOrigins: s.cfg.CORSOrigins}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(s.gatherer)))

	app.Use("/ws", requireUpgrade)
	app.Get("/ws", websocket.New(func(ws *websocket.Conn) {
		s.logger.Debugw("browser connected", "remote", ws.RemoteAddr().String())
		s.handler.ServeBrowser(s.ctx, ws)
	}))

	if s.calls != nil {
		app.Post("/call", s.createCall)
		app.Get("/twiml", s.twiml)
		app.Use("/twilio/stream", requireUpgrade)
		app.Get("/twilio/stream", websocket.New(func(ws *websocket.Conn) {
			s.logger.Infow("media stream connected", "call_sid", ws.Query("CallSid"))
			s.handler.ServeTwilio(s.ctx, ws)
		}))
	}
	return app
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// createCall dials req.To and points the call's TwiML at /twiml.
func (s *server) createCall(c *fiber.Ctx) error {
	var req callRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.To == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`to` field is required"})
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(s.cfg.Twilio.FromNumber)
	params.SetUrl(withSlash(s.cfg.Twilio.BaseURL) + "twiml")
	params.SetMethod("GET")

	resp, err := s.calls.CreateCall(params)
	if err != nil {
		s.logger.Errorw("twilio create call failed", "to", req.To, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create call"})
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	s.logger.Infow("call initiated", "to", req.To, "call_sid", sid)
	return c.JSON(callResponse{SID: sid, Message: "call initiated"})
}

// twiml tells Twilio to stream the call's audio to /twilio/stream.
func (s *server) twiml(c *fiber.Ctx) error {
	callSid := c.Query("CallSid", "")
	if callSid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "CallSid missing"})
	}

	xml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Connect>
    <Stream url="%stwilio/stream?CallSid=%s"/>
  </Connect>
</Response>`, withSlash(s.cfg.Twilio.BaseWSURL), url.QueryEscape(callSid))

	c.Type("xml")
	return c.SendString(xml)
}

func withSlash(base string) string {
	if strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}

// Package webui serves the UI message protocol over a WebSocket so a
// browser panel can chat with the tutor and drive lesson progress.
package webui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/abhisek/codetutor/internal/chat"
	"github.com/abhisek/codetutor/internal/evaluate"
	"github.com/abhisek/codetutor/internal/llm"
	"github.com/abhisek/codetutor/internal/protocol"
	"github.com/abhisek/codetutor/internal/study"
)

// Lessons is the part of the study session the panel drives.
type Lessons interface {
	Submit(ctx context.Context) (*evaluate.Result, error)
	Proceed(ctx context.Context) (*study.Status, error)
	Instructions(ctx context.Context) (string, error)
}

// Installer pulls models into the local model host.
type Installer interface {
	Install(ctx context.Context, model, params string) error
}

// Server upgrades /ws connections and dispatches protocol messages. Each
// connection owns its own chat conversation.
type Server struct {
	lessons   Lessons
	installer Installer
	backend   llm.Streamer

	// OriginPatterns are passed to websocket.Accept. Empty allows only
	// same-origin requests.
	OriginPatterns []string
}

// New creates a Server.
func New(lessons Lessons, installer Installer, backend llm.Streamer) *Server {
	return &Server{lessons: lessons, installer: installer, backend: backend}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Get("/ws", s.serveWS)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web host listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	reqID := chiMiddleware.GetReqID(r.Context())
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.OriginPatterns})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err, "request_id", reqID)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &conn{
		srv:    s,
		ws:     ws,
		reqID:  reqID,
		ctx:    ctx,
		cancel: cancel,
	}
	defer func() {
		c.cancelChat()
		c.wg.Wait()
		if closeErr := ws.Close(websocket.StatusNormalClosure, "bye"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr, "request_id", reqID)
		}
	}()

	instructions, err := s.lessons.Instructions(ctx)
	if err != nil {
		slog.Debug("no lesson instructions for chat", "error", err)
	}
	c.chat = chat.New(s.backend, instructions)
	if instructions != "" {
		c.send(protocol.Instructions(instructions))
	}
	c.sendModels()

	c.readLoop()
	slog.Info("websocket session ended", "request_id", reqID)
}

// conn is one UI connection. Inbound messages are handled one at a time;
// a chat reply streams in its own goroutine.
type conn struct {
	srv   *Server
	ws    *websocket.Conn
	reqID string
	chat  *chat.Session

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	chatMu     sync.Mutex
	chatCancel context.CancelFunc
	chatDone   chan struct{} // non-nil while a reply streams
	wg         sync.WaitGroup
}

func (c *conn) readLoop() {
	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("websocket closed by client", "request_id", c.reqID)
			} else {
				slog.Warn("websocket read error", "error", err, "request_id", c.reqID)
			}
			return
		}

		in, err := protocol.Decode(data)
		if err != nil {
			slog.Error("dropping message", "error", err, "request_id", c.reqID)
			continue
		}
		c.dispatch(in)
	}
}

func (c *conn) dispatch(in protocol.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic handling message", "command", in.Command, "panic", r, "stack", string(debug.Stack()))
			c.send(protocol.Warning("internal error"))
		}
	}()

	switch in.Command {
	case protocol.CmdReqChatMessage:
		req, err := in.ChatRequest()
		if err != nil {
			slog.Error("rejecting chat request", "error", err, "request_id", c.reqID)
			return
		}
		c.startChat(req)

	case protocol.CmdCancelChatMessage:
		c.cancelChat()

	case protocol.CmdReqKnownModels:
		c.sendModels()

	case protocol.CmdInstallModel:
		if err := c.srv.installer.Install(c.ctx, in.Model, in.Params); err != nil {
			c.send(protocol.Warning(fmt.Sprintf("Could not install %s: %v", in.Model, err)))
			return
		}
		c.sendModels()

	case protocol.CmdSetParamsReq, protocol.CmdValidateParamsReq:
		c.send(protocol.Warning("Model parameter sizing is not supported; pick an installed model or install one by name."))

	case protocol.CmdSubmitCode:
		res, err := c.srv.lessons.Submit(c.ctx)
		if err != nil {
			c.send(protocol.Warning(err.Error()))
			return
		}
		c.send(protocol.Results(res.Outcome))

	case protocol.CmdPostLessonProceed:
		c.proceed()

	case protocol.CmdReqInstructions:
		text, err := c.srv.lessons.Instructions(c.ctx)
		if err != nil {
			c.send(protocol.Warning(err.Error()))
			return
		}
		c.send(protocol.Instructions(text))

	default:
		slog.Warn("command not recognized", "command", in.Command, "request_id", c.reqID)
	}
}

// startChat streams a reply as begin, append*, done. Errors are appended
// as text before done. A request arriving while a reply streams is
// rejected with a warning and produces no begin or done.
func (c *conn) startChat(req protocol.ChatRequest) {
	c.chatMu.Lock()
	if c.chatDone != nil {
		c.chatMu.Unlock()
		c.send(protocol.Warning(chat.ErrBusy.Error()))
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	done := make(chan struct{})
	c.chatCancel = cancel
	c.chatDone = done
	c.send(protocol.ChatBegin())
	c.chatMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.finishChat(cancel, done)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic streaming chat", "panic", r, "stack", string(debug.Stack()))
			}
		}()

		for token, err := range c.chat.Stream(ctx, req.UserPrompt, req.Model()) {
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Warn("chat stream failed", "error", err, "model", req.ModelName, "request_id", c.reqID)
					c.send(protocol.ChatAppend(chatErrorText(err)))
				}
				return
			}
			if token == "" {
				continue
			}
			if !c.send(protocol.ChatAppend(token)) {
				return
			}
		}
	}()
}

// finishChat sends done and frees the connection for the next request.
// Both happen under chatMu so a new begin never precedes the old done.
func (c *conn) finishChat(cancel context.CancelFunc, done chan struct{}) {
	cancel()
	c.chatMu.Lock()
	defer c.chatMu.Unlock()
	c.send(protocol.ChatDone())
	c.chatCancel = nil
	c.chatDone = nil
	close(done)
}

func (c *conn) cancelChat() {
	c.chatMu.Lock()
	defer c.chatMu.Unlock()
	if c.chatCancel != nil {
		c.chatCancel()
	}
}

// stopChat cancels any streaming reply and waits until it has finished.
func (c *conn) stopChat() {
	c.chatMu.Lock()
	done := c.chatDone
	if c.chatCancel != nil {
		c.chatCancel()
	}
	c.chatMu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *conn) proceed() {
	status, err := c.srv.lessons.Proceed(c.ctx)
	if err != nil {
		c.send(protocol.Warning(err.Error()))
		return
	}
	slog.Info("lesson advanced from panel", "lesson", status.CurrentLesson)

	text, err := c.srv.lessons.Instructions(c.ctx)
	if err != nil {
		slog.Warn("failed to load instructions", "error", err)
		return
	}
	c.stopChat()
	if err := c.chat.Reset(text); err != nil {
		slog.Warn("chat not reset", "error", err, "request_id", c.reqID)
	}
	c.send(protocol.Instructions(text))
}

func (c *conn) sendModels() {
	models, err := c.chat.Models(c.ctx)
	if err != nil {
		slog.Warn("failed to list models", "error", err)
		models = c.chat.KnownModels()
	}
	c.send(protocol.ModelOptions(models))
}

// send writes one message and reports whether the connection is usable.
func (c *conn) send(out protocol.Outbound) bool {
	data, err := protocol.Encode(out)
	if err != nil {
		slog.Error("failed to encode message", "command", out.Command, "error", err)
		return true
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.ctx.Err() != nil {
		return false
	}
	if err := c.ws.Write(c.ctx, websocket.MessageText, data); err != nil {
		slog.Debug("websocket write error", "error", err, "request_id", c.reqID)
		c.cancel()
		return false
	}
	return true
}

func chatErrorText(err error) string {
	var (
		unavailable *llm.ErrProviderUnavailable
		notFound    *llm.ErrModelNotFound
	)
	switch {
	case errors.As(err, &notFound):
		return fmt.Sprintf("Model %q is not installed. Install it first.", notFound.Model)
	case errors.As(err, &unavailable):
		return "The model host is not reachable. Is it running? Try `codetutor setup`."
	}
	return "Error: " + err.Error()
}

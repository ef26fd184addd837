package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/othnielvtf/livechat/internal/auth"
	"github.com/othnielvtf/livechat/internal/gate"
	"github.com/othnielvtf/livechat/internal/gateway"
	"github.com/othnielvtf/livechat/internal/server/middleware"
	"github.com/othnielvtf/livechat/pkg/config"
	"github.com/othnielvtf/livechat/pkg/signature"
	"github.com/othnielvtf/livechat/pkg/state/registry"
	"github.com/othnielvtf/livechat/pkg/transport"
)

type App struct {
	logger     *slog.Logger
	authorizer *auth.Authorizer
	dispatcher *gateway.Dispatcher
	wg         sync.WaitGroup
	http       *http.Server
	config     *config.Config

	ctx context.Context
}

// NewApp wires the gateway together. The access policy decides entry to
// restricted channels; nil selects the development default.
func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, accessPolicy auth.AccessController) *App {
	signer := signature.NewSigner(cfg.Auth.AppKey, cfg.Auth.AppSecret)
	reg := registry.New(logger, cfg.History.Limit)
	dispatcher := gateway.NewDispatcher(logger, reg, gate.New(logger, signer))
	resolver := auth.NewResolver(logger, cfg.Auth.JWTSecret)

	app := &App{
		logger:     logger,
		authorizer: auth.NewAuthorizer(logger, signer, accessPolicy),
		dispatcher: dispatcher,
		config:     cfg,
		ctx:        rootCtx,
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.Chain(
		http.HandlerFunc(app.upgradeHandler),
		middleware.RequestMetadataMiddleware(),
		middleware.NewRequestLogger(logger),
		middleware.NewHandshakeAuth(logger, resolver),
		middleware.NewConnectionLimiter(
			logger,
			dispatcher.UserConnectionCount,
			dispatcher.CloseOldestUserConnection,
			cfg.Server.ConnectionLimit,
		),
	))
	mux.Handle("/auth/channel", middleware.Chain(
		http.HandlerFunc(app.channelAuthHandler),
		middleware.RequestMetadataMiddleware(),
		middleware.NewRequestLogger(logger),
	))

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return app.ctx
		},
	}
	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		a.ctx,
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.logger,
	)

	a.dispatcher.Register(conn, reqMeta.Identity)
	conn.SetOnMessage(a.dispatcher.HandleMessage)
	conn.SetOnClose(a.dispatcher.HandleClose)

	if reqMeta.Identity != nil {
		a.logger.Info("authenticated connection established",
			slog.String("connID", conn.ID().String()),
			slog.String("userID", reqMeta.Identity.UserID),
			slog.String("username", reqMeta.Identity.Username),
		)
	}
	conn.Run()
	<-conn.Done()
}

// channelAuthHandler is the authorization endpoint a trusted caller hits
// before joining a restricted channel.
func (a *App) channelAuthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req auth.ChannelAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, auth.WrapError(auth.KindInvalidRequest, "malformed request body", err))
		return
	}

	grant, err := a.authorizer.Authorize(r.Context(), req)
	if err != nil {
		a.logger.Warn("channel authorization failed",
			slog.String("channel", req.ChannelName),
			slog.String("kind", auth.KindOf(err).String()),
		)
		writeAuthError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(grant)
}

func writeAuthError(w http.ResponseWriter, err error) {
	kind := auth.KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.HTTPStatus())
	json.NewEncoder(w).Encode(map[string]string{
		"error":   kind.String(),
		"message": err.Error(),
	})
}

// Shutdown runs the graceful teardown sequence: stop accepting, close
// every live connection, wait for their goroutines to drain.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.dispatcher.CloseAll(errors.New("graceful shutdown"))
	a.wg.Wait()
	a.logger.Info("server shut down gracefully")
	return nil
}

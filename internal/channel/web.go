package channel

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chenjy16/webtools-sub001/internal/analysis"
	"github.com/chenjy16/webtools-sub001/internal/config"
	"github.com/chenjy16/webtools-sub001/internal/domain"
	"github.com/chenjy16/webtools-sub001/internal/game"
	"github.com/chenjy16/webtools-sub001/internal/metrics"
	"github.com/chenjy16/webtools-sub001/internal/store"
	"github.com/chenjy16/webtools-sub001/internal/tool"
)

const (
	maxBodySize       = 1 << 20 // 1MB
	requestTimeout    = 120 * time.Second
	limiterIdleTTL    = 10 * time.Minute
	limiterPruneAbove = 1024
	defaultRateBurst  = 10
)

// Analyst is the analysis surface exposed over HTTP.
type Analyst interface {
	Start(ctx context.Context, rawURL string) (*analysis.Session, error)
	Ask(ctx context.Context, id, question string) (*analysis.Reply, error)
	History(ctx context.Context, id string, limit int) ([]domain.MessageRecord, error)
	List(ctx context.Context, limit int) ([]domain.Conversation, error)
	Delete(ctx context.Context, id string) error
}

// Web implements domain.Channel as a JSON API over the tools, games, high
// scores and website analysis.
type Web struct {
	host    string
	port    int
	bus     domain.MessageBus
	logger  *slog.Logger
	server  *http.Server
	version string

	tools   *tool.Registry
	games   *game.Manager
	scores  domain.ScoreStore
	analyst Analyst // nil when no provider is configured

	// Config reference for settings API (protected by cfgMu)
	cfg     *config.Config
	cfgPath string
	cfgMu   sync.RWMutex

	authEnabled  bool
	authUser     string
	authPassHash string

	metricsPath string

	// Per-client limiters keyed by remote host
	ratePerMinute int
	limiters      map[string]*clientLimiter
	limitersMu    sync.Mutex

	// Pending /api/chat responses keyed by chat ID
	pendingResponses   map[string]*pendingChat
	pendingResponsesMu sync.Mutex
}

// pendingChat is one /api/chat request waiting for its reply. reply is
// never closed; a newer request for the same chat closes superseded
// instead, so Send can never write to a closed channel.
type pendingChat struct {
	reply      chan string
	superseded chan struct{}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type WebConfig struct {
	Host       string
	Port       int
	Logger     *slog.Logger
	Config     *config.Config
	ConfigPath string
	Version    string
	Tools      *tool.Registry
	Games      *game.Manager
	Scores     domain.ScoreStore
	Analyst    Analyst
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	w := &Web{
		host:             cfg.Host,
		port:             cfg.Port,
		logger:           cfg.Logger,
		version:          cfg.Version,
		tools:            cfg.Tools,
		games:            cfg.Games,
		scores:           cfg.Scores,
		analyst:          cfg.Analyst,
		cfg:              cfg.Config,
		cfgPath:          cfg.ConfigPath,
		limiters:         make(map[string]*clientLimiter),
		pendingResponses: make(map[string]*pendingChat),
	}

	if c := cfg.Config; c != nil {
		if c.Channels.Web.Auth.Enabled {
			w.authEnabled = true
			w.authUser = c.Channels.Web.Auth.Username
			w.authPassHash = strings.ToLower(c.Channels.Web.Auth.PasswordHash)
		}
		w.ratePerMinute = c.Channels.Web.RateLimitPerMinute
		if c.Metrics.Enabled {
			w.metricsPath = c.Metrics.Endpoint
			if w.metricsPath == "" {
				w.metricsPath = "/metrics"
			}
		}
	}
	return w
}

func (w *Web) Name() string { return "web" }

// SetBus attaches the message bus without starting the server.
func (w *Web) SetBus(bus domain.MessageBus) {
	w.bus = bus
	bus.Route(w.Name(), func(msg domain.OutboundMessage) {
		if err := w.Send(context.Background(), msg); err != nil {
			w.logger.Debug("web reply dropped", "chat", msg.ChatID, "err", err)
		}
	})
}

// Handler returns the API routes.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", w.handleStatus) // public endpoint
	if w.metricsPath != "" {
		mux.Handle("GET "+w.metricsPath, metrics.Default.Handler())
	}

	api := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, w.requireAuth(w.rateLimit(h)))
	}
	api("GET /api/tools", w.handleListTools)
	api("POST /api/tools/{name}", w.handleRunTool)

	api("POST /api/games/{game}", w.handleNewGame)
	api("GET /api/games/sessions/{id}", w.handleGetGame)
	api("DELETE /api/games/sessions/{id}", w.handleDeleteGame)
	api("POST /api/games/sessions/{id}/{action}", w.handleGameAction)

	api("GET /api/scores/{game}", w.handleTopScores)
	api("POST /api/scores/{game}", w.handleSubmitScore)

	api("GET /api/analysis", w.handleListAnalyses)
	api("POST /api/analysis", w.handleStartAnalysis)
	api("DELETE /api/analysis/{id}", w.handleDeleteAnalysis)
	api("GET /api/analysis/{id}/messages", w.handleAnalysisHistory)
	api("POST /api/analysis/{id}/messages", w.handleAsk)

	api("POST /api/chat", w.handleChat)

	api("GET /api/config", w.handleGetConfig)
	api("PUT /api/config", w.handleUpdateConfig)
	api("POST /api/config/save", w.handleSaveConfig)

	return countRequests(mux)
}

// Start starts the web server and blocks until ctx is cancelled.
func (w *Web) Start(ctx context.Context, bus domain.MessageBus) error {
	w.SetBus(bus)

	addr := net.JoinHostPort(w.host, strconv.Itoa(w.port))
	w.server = &http.Server{
		Addr:              addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	w.logger.Info("web API started", "addr", "http://"+addr, "auth", w.authEnabled, "rate_per_minute", w.ratePerMinute)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.server.Shutdown(shutdownCtx)
	}()

	if err := w.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (w *Web) Stop() error {
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

// Send has no push transport; replies are delivered to waiting /api/chat
// requests through the bus.
func (w *Web) Send(_ context.Context, msg domain.OutboundMessage) error {
	w.pendingResponsesMu.Lock()
	defer w.pendingResponsesMu.Unlock()
	p, ok := w.pendingResponses[msg.ChatID]
	if !ok {
		return fmt.Errorf("no pending request for chat %s", msg.ChatID)
	}
	select {
	case p.reply <- msg.Content:
	default:
	}
	return nil
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: rw, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.HTTPRequests.Inc(r.Method, metrics.StatusClass(rec.code))
	})
}

// requireAuth wraps a handler with HTTP Basic Auth when auth is enabled.
func (w *Web) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !w.authEnabled {
			next(rw, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || !w.checkCredentials(user, pass) {
			rw.Header().Set("WWW-Authenticate", `Basic realm="tool.blog"`)
			writeError(rw, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(rw, r)
	}
}

// checkCredentials verifies username and password against stored hash.
func (w *Web) checkCredentials(user, pass string) bool {
	if subtle.ConstantTimeCompare([]byte(user), []byte(w.authUser)) != 1 {
		return false
	}
	hash := sha256.Sum256([]byte(pass))
	got := hex.EncodeToString(hash[:])
	return subtle.ConstantTimeCompare([]byte(got), []byte(w.authPassHash)) == 1
}

// rateLimit applies a token bucket per client host. A zero rate disables it.
func (w *Web) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if w.ratePerMinute <= 0 {
			next(rw, r)
			return
		}
		if !w.limiterFor(clientKey(r)).Allow() {
			metrics.HTTPRateLimited.Inc()
			rw.Header().Set("Retry-After", "60")
			writeError(rw, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(rw, r)
	}
}

func (w *Web) limiterFor(key string) *rate.Limiter {
	w.limitersMu.Lock()
	defer w.limitersMu.Unlock()

	now := time.Now()
	if cl, ok := w.limiters[key]; ok {
		cl.lastSeen = now
		return cl.limiter
	}
	if len(w.limiters) >= limiterPruneAbove {
		for k, cl := range w.limiters {
			if now.Sub(cl.lastSeen) > limiterIdleTTL {
				delete(w.limiters, k)
			}
		}
	}
	burst := min(w.ratePerMinute, defaultRateBurst)
	cl := &clientLimiter{
		limiter:  rate.NewLimiter(rate.Limit(float64(w.ratePerMinute)/60.0), burst),
		lastSeen: now,
	}
	w.limiters[key] = cl
	return cl.limiter
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (w *Web) handleStatus(rw http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":   "ok",
		"version":  w.version,
		"time":     time.Now().Format(time.RFC3339),
		"uptime":   metrics.Default.Uptime().Round(time.Second).String(),
		"analysis": w.analyst != nil,
	}
	if w.tools != nil {
		status["tools"] = len(w.tools.Names())
	}
	if w.games != nil {
		status["games"] = w.games.Len()
	}
	writeJSON(rw, http.StatusOK, status)
}

// --- tools ---

func (w *Web) handleListTools(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, w.tools.Definitions())
}

func (w *Web) handleRunTool(rw http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	args := map[string]any{}
	if err := decodeBody(r, &args); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	out, err := w.tools.Execute(r.Context(), name, args)
	if err != nil {
		writeError(rw, statusFor(err, http.StatusBadRequest), err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"tool": name, "output": out})
}

// --- games ---

func (w *Web) handleNewGame(rw http.ResponseWriter, r *http.Request) {
	kind, err := game.ParseKind(r.PathValue("game"))
	if err != nil {
		writeError(rw, http.StatusNotFound, err.Error())
		return
	}
	w.runGameTool(rw, r, kind, map[string]any{"action": "new"}, http.StatusCreated)
}

func (w *Web) handleGetGame(rw http.ResponseWriter, r *http.Request) {
	v, err := w.games.Get(r.PathValue("id"))
	if err != nil {
		writeError(rw, statusFor(err, http.StatusBadRequest), err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, v)
}

func (w *Web) handleDeleteGame(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := w.games.Get(id); err != nil {
		writeError(rw, statusFor(err, http.StatusBadRequest), err.Error())
		return
	}
	w.games.Delete(id)
	rw.WriteHeader(http.StatusNoContent)
}

// handleGameAction applies an action through the game's tool so that a game
// ending here records its score like any other client would.
func (w *Web) handleGameAction(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, err := w.games.Get(id)
	if err != nil {
		writeError(rw, statusFor(err, http.StatusBadRequest), err.Error())
		return
	}
	args := map[string]any{}
	if err := decodeBody(r, &args); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	action := r.PathValue("action")
	if action == "delete" {
		w.games.Delete(id)
		rw.WriteHeader(http.StatusNoContent)
		return
	}
	args["action"] = action
	args["session"] = id
	w.runGameTool(rw, r, v.Kind, args, http.StatusOK)
}

func (w *Web) runGameTool(rw http.ResponseWriter, r *http.Request, kind game.Kind, args map[string]any, okStatus int) {
	out, err := w.tools.Execute(r.Context(), "game_"+string(kind), args)
	if err != nil {
		writeError(rw, statusFor(err, http.StatusBadRequest), err.Error())
		return
	}
	writeRawJSON(rw, okStatus, out)
}

// --- scores ---

func (w *Web) handleTopScores(rw http.ResponseWriter, r *http.Request) {
	g := r.PathValue("game")
	limit := queryInt(r, "limit", 10)
	top, err := w.scores.TopScores(r.Context(), g, limit)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	best, err := w.scores.BestScore(r.Context(), g)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	if top == nil {
		top = []domain.Score{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"game": g, "best": best, "scores": top})
}

func (w *Web) handleSubmitScore(rw http.ResponseWriter, r *http.Request) {
	var body struct {
		Player string `json:"player"`
		Score  *int   `json:"score"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	if body.Score == nil {
		writeError(rw, http.StatusBadRequest, "score is required")
		return
	}
	s := domain.Score{Game: r.PathValue("game"), Player: body.Player, Value: *body.Score}
	id, err := w.scores.SubmitScore(r.Context(), s)
	if err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	best, _ := w.scores.BestScore(r.Context(), s.Game)
	writeJSON(rw, http.StatusCreated, map[string]any{"id": id, "best": best})
}

// --- analysis ---

func (w *Web) handleListAnalyses(rw http.ResponseWriter, r *http.Request) {
	if !w.requireAnalyst(rw) {
		return
	}
	convs, err := w.analyst.List(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	writeJSON(rw, http.StatusOK, convs)
}

func (w *Web) handleStartAnalysis(rw http.ResponseWriter, r *http.Request) {
	if !w.requireAnalyst(rw) {
		return
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		writeError(rw, http.StatusBadRequest, "url is required")
		return
	}
	sess, err := w.analyst.Start(r.Context(), body.URL)
	if err != nil {
		if sess != nil {
			// Snapshot and conversation exist; the client can retry via messages.
			writeJSON(rw, http.StatusInternalServerError, map[string]any{
				"error":        err.Error(),
				"conversation": sess.Conversation,
				"snapshot":     sess.Snapshot,
			})
			return
		}
		status := http.StatusInternalServerError
		if errors.Is(err, analysis.ErrUnsupportedScheme) {
			status = http.StatusBadRequest
		}
		writeError(rw, status, err.Error())
		return
	}
	writeJSON(rw, http.StatusCreated, sess)
}

func (w *Web) handleDeleteAnalysis(rw http.ResponseWriter, r *http.Request) {
	if !w.requireAnalyst(rw) {
		return
	}
	if err := w.analyst.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(rw, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (w *Web) handleAnalysisHistory(rw http.ResponseWriter, r *http.Request) {
	if !w.requireAnalyst(rw) {
		return
	}
	msgs, err := w.analyst.History(r.Context(), r.PathValue("id"), queryInt(r, "limit", 100))
	if err != nil {
		writeError(rw, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	if msgs == nil {
		msgs = []domain.MessageRecord{}
	}
	writeJSON(rw, http.StatusOK, msgs)
}

func (w *Web) handleAsk(rw http.ResponseWriter, r *http.Request) {
	if !w.requireAnalyst(rw) {
		return
	}
	var body struct {
		Question string `json:"question"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	reply, err := w.analyst.Ask(r.Context(), r.PathValue("id"), body.Question)
	if err != nil {
		writeError(rw, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, reply)
}

func (w *Web) requireAnalyst(rw http.ResponseWriter) bool {
	if w.analyst == nil {
		writeError(rw, http.StatusServiceUnavailable, "website analysis is not available: no inference provider configured")
		return false
	}
	return true
}

// --- chat ---

// handleChat publishes a chat message to the bus and waits for the
// dispatcher's reply, so commands behave exactly as they do in the CLI and
// Telegram.
func (w *Web) handleChat(rw http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
		ChatID  string `json:"chatId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeError(rw, http.StatusBadRequest, "empty message")
		return
	}
	if w.bus == nil {
		writeError(rw, http.StatusServiceUnavailable, "chat is not available")
		return
	}
	chatID := body.ChatID
	if chatID == "" {
		chatID = newChatID()
	}

	pending := &pendingChat{reply: make(chan string, 1), superseded: make(chan struct{})}
	w.pendingResponsesMu.Lock()
	if old, exists := w.pendingResponses[chatID]; exists {
		close(old.superseded)
	}
	w.pendingResponses[chatID] = pending
	w.pendingResponsesMu.Unlock()
	defer func() {
		w.pendingResponsesMu.Lock()
		if w.pendingResponses[chatID] == pending {
			delete(w.pendingResponses, chatID)
		}
		w.pendingResponsesMu.Unlock()
	}()

	err := w.bus.Publish(r.Context(), domain.InboundMessage{
		Channel:   "web",
		ChatID:    chatID,
		SenderID:  clientKey(r),
		Content:   body.Message,
		Timestamp: time.Now(),
	})
	if err != nil {
		w.logger.Warn("chat message not queued", "chat", chatID, "err", err)
		writeError(rw, http.StatusServiceUnavailable, "server busy, try again shortly")
		return
	}

	timeout := time.NewTimer(requestTimeout)
	defer timeout.Stop()
	select {
	case resp := <-pending.reply:
		writeJSON(rw, http.StatusOK, map[string]string{"chatId": chatID, "content": resp})
	case <-pending.superseded:
		writeError(rw, http.StatusConflict, "superseded by a newer request")
	case <-timeout.C:
		writeError(rw, http.StatusGatewayTimeout, "request timed out")
	case <-r.Context().Done():
		w.logger.Info("web client disconnected", "chat", chatID)
	}
}

func newChatID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("web_%d", time.Now().UnixNano())
	}
	return "web_" + hex.EncodeToString(b)
}

// --- helpers ---

// statusFor maps sentinel errors to 404 and everything else to def.
func statusFor(err error, def int) int {
	switch {
	case errors.Is(err, tool.ErrUnknownTool),
		errors.Is(err, game.ErrSessionNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return def
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

func writeRawJSON(rw http.ResponseWriter, status int, body string) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	fmt.Fprintln(rw, body)
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}

var _ domain.Channel = (*Web)(nil)

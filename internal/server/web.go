package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"golang.org/x/net/websocket"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/htmldoc"
	"github.com/unveil/unveil/internal/shellhost"
	"github.com/unveil/unveil/pkg/gatelib"
)

// WebServer carries the daemon's HTTP surface: the shell capture ingest
// endpoint at /capture and, when a secret is configured, the JSON-RPC
// bridge at /jsonrpc plus its WebSocket variant at /jsonrpc/ws.
type WebServer struct {
	port     int
	l        *log.Logger
	m        *gatelib.Manager
	jrn      gatelib.Journal
	reg      *shellhost.Registry
	client   *http.Client
	pool     *Pool
	notifier *RPCNotifier
	rpc      *RPCServer
	listen   bool
	server   *http.Server
	mu       sync.Mutex
}

func NewWebServer(l *log.Logger, m *gatelib.Manager, jrn gatelib.Journal, reg *shellhost.Registry, client *http.Client, pool *Pool, port int, rpcCfg *RPCConfig) *WebServer {
	if l == nil {
		l = log.Default()
	}
	if client == nil {
		client = &http.Client{}
	}
	s := &WebServer{
		port:     port,
		l:        l,
		m:        m,
		jrn:      jrn,
		reg:      reg,
		client:   client,
		pool:     pool,
		notifier: NewRPCNotifier(l),
	}
	if rpcCfg != nil && rpcCfg.Secret != "" {
		s.rpc = NewRPCServer(l, rpcCfg, m, jrn, client, pool, s.notifier)
		s.listen = rpcCfg.ListenAll
	}
	return s
}

// processCapture gates one pushed page. The page is scanned statically; a
// shell wanting to feed a live DOM goes through the socket report protocol
// instead.
func (s *WebServer) processCapture(cp *common.WatchParams) error {
	doc, err := htmldoc.Fetch(context.Background(), s.l, cp.Url, &htmldoc.Opts{
		Client:  s.client,
		Headers: cp.Headers,
	})
	if err != nil {
		return err
	}
	g, err := gatelib.NewGate(s.l, doc, cp.GateConfig(), &gatelib.GateOpts{
		Handlers: BroadcastHandlers(s.pool, s.notifier),
	})
	if err != nil {
		return err
	}
	s.m.AddRun(g)
	s.pool.AddRun(g.RunID(), nil)
	go func(l *log.Logger) {
		if err := g.Run(context.Background()); err != nil && err != gatelib.ErrGateCanceled {
			l.Println("Error running gate:", err)
		}
	}(s.l)
	return nil
}

// ingestFrame is one message on the ingest endpoint: either a page capture
// to gate, or a DOM report for a shell-hosted run already started over the
// socket protocol.
type ingestFrame struct {
	Capture *common.WatchParams  `json:"capture,omitempty"`
	Report  *common.ReportParams `json:"report,omitempty"`
}

// processReport routes one shell DOM report into the session of its run.
func (s *WebServer) processReport(rep *common.ReportParams) error {
	sess, ok := s.reg.Get(rep.RunId)
	if !ok {
		return fmt.Errorf("no shell session for run %s", rep.RunId)
	}
	return sess.Apply(rep)
}

func (s *WebServer) handleConnection(conn *websocket.Conn) {
	defer conn.Close()
	for {
		var data []byte
		err := websocket.Message.Receive(conn, &data)
		if err != nil {
			if err == io.EOF {
				s.l.Println("Connection closed")
				return
			}
			s.l.Println("Error receiving message: ", err)
			return
		}
		var frame ingestFrame
		err = json.Unmarshal(data, &frame)
		if err != nil {
			s.l.Println("Error unmarshalling frame: ", err)
			continue
		}
		switch {
		case frame.Report != nil:
			err = s.processReport(frame.Report)
		case frame.Capture != nil:
			err = s.processCapture(frame.Capture)
		default:
			err = fmt.Errorf("frame carries neither capture nor report")
		}
		if err != nil {
			s.l.Println("Error processing frame: ", err)
			continue
		}
	}
}

// handleRPCWebSocket upgrades the connection and serves JSON-RPC over it.
// The per-connection jrpc2 server is registered with the notifier for the
// lifetime of the connection so gate lifecycle pushes reach it.
func (s *WebServer) handleRPCWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, &cws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.l.Println("WebSocket accept failed:", err)
		return
	}
	ch := &wsChannel{conn: conn, ctx: r.Context()}
	srv := jrpc2.NewServer(s.rpc.methods, &jrpc2.ServerOptions{AllowPush: true})
	s.notifier.Register(srv)
	defer s.notifier.Unregister(srv)
	srv.Start(ch)
	_ = srv.Wait()
}

func (s *WebServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/capture", websocket.Handler(s.handleConnection))
	if s.rpc != nil {
		mux.Handle("/jsonrpc", requireToken(s.rpc.secret, s.rpc.bridge))
		mux.Handle("/jsonrpc/ws", requireToken(s.rpc.secret, http.HandlerFunc(s.handleRPCWebSocket)))
	}
	return mux
}

func (s *WebServer) addr() string {
	if s.listen {
		return fmt.Sprintf(":%d", s.port)
	}
	return fmt.Sprintf("%s:%d", common.TCPHost, s.port)
}

func (s *WebServer) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:    s.addr(),
		Handler: s.handler(),
	}
	s.mu.Unlock()

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil // Expected during shutdown
	}
	return err
}

// Shutdown gracefully stops the web server and the RPC bridge.
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rpc != nil {
		s.rpc.Close()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

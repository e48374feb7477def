package console

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"flyer/internal/hostkey"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

const (
	handshakeTimeout = 10 * time.Second
	fingerprintExt   = "flyer-fingerprint"
)

// Server offers console sessions over SSH. Keys in authorized_keys grant
// access; every authorized user can edit. Only interactive shells are
// served: there is no exec or subsystem support.
type Server struct {
	addr    string
	console *Console
	allowed map[string]struct{} // authorized keys in wire format
	config  *gossh.ServerConfig

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
}

// NewServer creates an SSH server. If authKeysPath does not exist, the
// server starts but rejects all connections.
func NewServer(addr string, key *hostkey.HostKey, c *Console, authKeysPath string) (*Server, error) {
	keys, err := hostkey.AuthorizedKeys(authKeysPath)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		logger.Warn("no authorized keys loaded, SSH console rejects everyone", "path", authKeysPath)
	}
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[string(k.Marshal())] = struct{}{}
	}

	s := &Server{addr: addr, console: c, allowed: allowed}
	s.config = &gossh.ServerConfig{PublicKeyCallback: s.authorize}
	s.config.AddHostKey(key.Signer)
	return s, nil
}

// Listen binds the socket and freezes the console's command set.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.console.commands.Freeze()
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve accepts connections until ctx is cancelled or Stop is called.
// Sessions run with a context derived from ctx and are cut off with it.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	ln := s.listener
	s.cancel = cancel
	s.mu.Unlock()
	if ln == nil {
		return errors.New("Serve called before Listen")
	}
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warn("accept error", "err", err)
			continue
		}
		go s.serveConn(ctx, conn)
	}
}

// Start calls Listen then Serve.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Stop closes the listener and ends every open session.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *Server) authorize(meta gossh.ConnMetadata, key gossh.PublicKey) (*gossh.Permissions, error) {
	if _, ok := s.allowed[string(key.Marshal())]; !ok {
		return nil, fmt.Errorf("unknown public key for %s", meta.User())
	}
	return &gossh.Permissions{
		Extensions: map[string]string{fingerprintExt: gossh.FingerprintSHA256(key)},
	}, nil
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	sshConn, chans, reqs, err := gossh.NewServerConn(conn, s.config)
	if err != nil {
		logger.Warn("ssh handshake failed", "remote", conn.RemoteAddr(), "err", err)
		return
	}
	_ = conn.SetDeadline(time.Time{})
	defer func() { _ = sshConn.Close() }()
	go gossh.DiscardRequests(reqs)

	user := sshConn.User()
	log := logger.With("user", user, "remote", conn.RemoteAddr())
	if sshConn.Permissions != nil {
		log = log.With("key", sshConn.Permissions.Extensions[fingerprintExt])
	}
	log.Info("ssh client connected")

	for nc := range chans {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(gossh.UnknownChannelType, "only session channels are supported")
			continue
		}
		ch, chReqs, err := nc.Accept()
		if err != nil {
			log.Warn("channel accept error", "err", err)
			continue
		}
		go s.serveSession(ctx, ch, chReqs, user)
	}
	log.Info("ssh client disconnected")
}

// serveSession waits for a shell request, then runs one console session on
// the channel and reports its exit status.
func (s *Server) serveSession(ctx context.Context, ch gossh.Channel, reqs <-chan *gossh.Request, user string) {
	defer func() { _ = ch.Close() }()

	for req := range reqs {
		switch req.Type {
		case "pty-req", "env", "window-change":
			if req.WantReply {
				_ = req.Reply(true, nil)
			}
		case "shell":
			if req.WantReply {
				_ = req.Reply(true, nil)
			}
			go rejectAll(reqs)
			status := uint32(0)
			if err := s.console.Serve(ctx, user, term.NewTerminal(ch, prompt)); err != nil {
				logger.Debug("console session error", "user", user, "err", err)
				status = 1
			}
			_, _ = ch.SendRequest("exit-status", false, gossh.Marshal(struct{ Status uint32 }{status}))
			return
		case "exec", "subsystem":
			_, _ = fmt.Fprint(ch.Stderr(), "flyer only serves an interactive console; connect without a command\r\n")
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			return
		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

// rejectAll answers the requests that arrive once the shell is running.
func rejectAll(reqs <-chan *gossh.Request) {
	for req := range reqs {
		if req.WantReply {
			_ = req.Reply(false, nil)
		}
	}
}

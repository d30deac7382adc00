// main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/nexusvr/corevr/internal/config"
	"github.com/nexusvr/corevr/internal/foveation"
	"github.com/nexusvr/corevr/internal/idr"
	"github.com/nexusvr/corevr/internal/proto"
	"github.com/nexusvr/corevr/internal/session"
	"github.com/nexusvr/corevr/internal/transport"
)

var (
	showHelp = flag.Bool("h", false, "Show help")
	version  = flag.Bool("version", false, "Show version")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("corevr v%s\n", appVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "host":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: host command requires a config directory")
			fmt.Fprintln(os.Stderr, "Usage: corevr host <directory> [control-addr]")
			os.Exit(1)
		}
		addr := ":9757"
		if len(args) > 2 {
			addr = args[2]
		}
		runHost(args[1], addr)

	case "headset":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: headset command requires a config directory and a host address")
			fmt.Fprintln(os.Stderr, "Usage: corevr headset <directory> <host:port>")
			os.Exit(1)
		}
		runHeadset(args[1], args[2])

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", args[0])
		fmt.Fprintln(os.Stderr)
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("corevr - VR streaming protocol core")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  corevr host <directory> [control-addr]   Run the host role")
	fmt.Println("  corevr headset <directory> <host:port>   Run the headset role")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h        Show this help message")
	fmt.Println("  -version  Show version")
}

func withSignals() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down")
		cancel()
	}()
	return ctx, cancel
}

func loadConfig(dirArg string) (config.Config, string) {
	absDir, err := filepath.Abs(dirArg)
	if err != nil {
		log.Fatalf("invalid directory: %v", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		log.Fatalf("create directory: %v", err)
	}
	cfgPath := config.Path(absDir)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	return cfg, cfgPath
}

// streamPortOffset is the fixed offset between the control TCP port and
// the stream UDP port; a full pairing flow would announce the stream
// port explicitly rather than deriving it.
const streamPortOffset = 1

func streamAddr(controlAddr string) (string, error) {
	host, portStr, err := splitHostPort(controlAddr)
	if err != nil {
		return "", err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", host, port+streamPortOffset), nil
}

func splitHostPort(addr string) (host, port string, err error) {
	idx := lastColon(addr)
	if idx < 0 {
		return "", "", fmt.Errorf("invalid address %q", addr)
	}
	return addr[:idx], addr[idx+1:], nil
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}

func runHost(dir, controlAddr string) {
	_, cfgPath := loadConfig(dir)
	watcher, err := config.NewWatcher(cfgPath)
	if err != nil {
		log.Fatalf("watch config: %v", err)
	}
	defer watcher.Close()
	log.Printf("host config loaded from %s", cfgPath)

	ln, err := transport.ListenControl(controlAddr)
	if err != nil {
		log.Fatalf("listen control: %v", err)
	}
	defer ln.Close()

	udpAddr, err := streamAddr(controlAddr)
	if err != nil {
		log.Fatalf("derive stream addr: %v", err)
	}
	stream, err := transport.ListenStream(udpAddr, 0xC0CE)
	if err != nil {
		log.Fatalf("listen stream: %v", err)
	}
	defer stream.Close()

	log.Printf("host listening: control=%s stream=%s", ln.Addr(), stream.LocalAddr())

	ctx, cancel := withSignals()
	defer cancel()

	sessions := newHostRegistry()

	for {
		control, err := transport.AcceptControl(ln)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("accept control: %v", err)
			continue
		}

		theirs, err := control.Handshake(proto.Handshake{Version: proto.ProtocolVersion})
		if err != nil {
			log.Printf("handshake: %v", err)
			control.Close()
			continue
		}

		entry := sessions.attach(theirs.Cookie, control, stream, watcher)
		host := entry.host

		if err := host.ConfigureVideo(2176, 1200, watcher.Current().PreferredRefreshRate,
			[]proto.VideoStreamItem{{Width: 2176, Height: 1200, Codec: proto.CodecH265}},
			[2]foveation.Source{
				{ExtentW: 1088, ExtentH: 1200},
				{ExtentW: 1088, ExtentH: 1200, OffsetW: 1088},
			}); err != nil {
			log.Printf("configure video: %v", err)
		}

		go func(entry *hostEntry) {
			if err := host.Run(ctx); err != nil {
				log.Printf("session %s ended: %v", host.ID(), err)
			}
			close(entry.done)
		}(entry)
	}
}

// hostEntry is one cookie-correlated session kept alive across
// reconnects: done closes once its current Run call has returned, the
// signal attach waits on before handing the same Host to a new
// connection from the same headset.
type hostEntry struct {
	host *session.Host
	done chan struct{}
}

// hostRegistry correlates a reconnecting headset's handshake cookie
// back to the Host instance holding its pose histories, tracking
// controller, and idr handlers (PeerGone handling, see
// internal/session's Reconnecting state).
type hostRegistry struct {
	mu       sync.Mutex
	sessions map[string]*hostEntry
}

func newHostRegistry() *hostRegistry {
	return &hostRegistry{sessions: make(map[string]*hostEntry)}
}

// attach returns the hostEntry a new connection should run on: an
// existing one reattached if cookie matches a known, now-idle session,
// or a freshly constructed one otherwise.
func (r *hostRegistry) attach(cookie string, control *transport.Control, stream *transport.Stream, watcher *config.Watcher) *hostEntry {
	var existing *hostEntry
	if cookie != "" {
		r.mu.Lock()
		existing = r.sessions[cookie]
		r.mu.Unlock()
	}

	if existing != nil {
		<-existing.done // wait for the prior connection's threads to fully stop
		existing.host.Reattach(control)
		entry := &hostEntry{host: existing.host, done: make(chan struct{})}
		r.mu.Lock()
		r.sessions[cookie] = entry
		r.mu.Unlock()
		log.Printf("session %s reattached for cookie %s", existing.host.ID(), cookie)
		return entry
	}

	host := session.NewHost(control, stream, watcher.Current().Snapshot(), placeholderEncoder{})
	entry := &hostEntry{host: host, done: make(chan struct{})}
	if cookie != "" {
		r.mu.Lock()
		r.sessions[cookie] = entry
		r.mu.Unlock()
	}
	return entry
}

// headsetReconnectBackoff and headsetReconnectBackoffMax bound the delay
// between redial attempts after the control channel to the host drops,
// backing off exponentially up to the cap.
const headsetReconnectBackoff = 500 * time.Millisecond
const headsetReconnectBackoffMax = 10 * time.Second

func runHeadset(dir, hostAddr string) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		log.Fatalf("invalid directory: %v", err)
	}
	_, cfgPath := loadConfig(dir)
	log.Printf("headset config loaded from %s", cfgPath)

	cookie, err := config.LoadOrCreateCookie(config.CookiePath(absDir))
	if err != nil {
		log.Fatalf("load cookie: %v", err)
	}

	udpAddr, err := streamAddr(hostAddr)
	if err != nil {
		log.Fatalf("derive stream addr: %v", err)
	}
	stream, err := transport.ListenStream(":0", 0xC0DE)
	if err != nil {
		log.Fatalf("listen stream: %v", err)
	}
	defer stream.Close()

	resolved, err := net.ResolveUDPAddr("udp", udpAddr)
	if err != nil {
		log.Fatalf("resolve stream addr: %v", err)
	}

	ctx, cancel := withSignals()
	defer cancel()

	var c *session.Headset
	backoff := headsetReconnectBackoff
	for {
		control, err := transport.DialControl(hostAddr, 5*time.Second)
		if err != nil {
			log.Printf("dial control: %v", err)
			if !sleepBackoff(ctx, &backoff) {
				return
			}
			continue
		}

		if _, err := control.HeadsetHandshake(proto.Handshake{Version: proto.ProtocolVersion, Cookie: cookie}); err != nil {
			log.Printf("handshake: %v", err)
			control.Close()
			if !sleepBackoff(ctx, &backoff) {
				return
			}
			continue
		}
		backoff = headsetReconnectBackoff

		if c == nil {
			c = session.NewHeadset(control, stream, resolved, placeholderPresenter{})
		} else {
			c.Reattach(control, stream, resolved)
		}

		if err := c.Run(ctx); err != nil {
			log.Printf("session %s ended: %v", c.ID(), err)
		}
		if ctx.Err() != nil {
			return
		}
		if c.State() != proto.SessionReconnecting {
			return
		}
		log.Printf("session %s reconnecting to %s", c.ID(), hostAddr)
	}
}

// sleepBackoff waits d, doubling it for next time up to the cap, and
// reports whether the wait completed (false if ctx was canceled first).
func sleepBackoff(ctx context.Context, d *time.Duration) bool {
	t := time.NewTimer(*d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return false
	}
	*d *= 2
	if *d > headsetReconnectBackoffMax {
		*d = headsetReconnectBackoffMax
	}
	return true
}

// placeholderEncoder and placeholderPresenter exercise the session
// wire path without a real hardware codec; EncodeFrame and Present are
// the integration points a real build replaces.
type placeholderEncoder struct{}

func (placeholderEncoder) EncodeFrame(streamItemIdx uint8, frameID uint64, frameType idr.FrameType) ([]byte, error) {
	return make([]byte, 64), nil
}

type placeholderPresenter struct{}

func (placeholderPresenter) Present(streamItemIdx uint8, frameIdx uint64, payload []byte) (sentToDecoder, receivedFromDecoder, blitted, displayed int64, err error) {
	now := time.Now().UnixNano()
	return now, now, now, now, nil
}

package remote

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/multiseat/userlist/internal/logging"
)

// State of the gateway's connection to the accounts service.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// GatewayConfig carries the connection settings for a Gateway.
type GatewayConfig struct {
	// Target is the gRPC target of the accounts service.
	Target string

	// ReconnectInterval is the pause between watch attempts while the
	// service is unreachable.
	ReconnectInterval time.Duration

	// DialOptions are appended to the default dial options. Tests use this
	// to dial an in-process bufconn listener.
	DialOptions []grpc.DialOption

	// OnStateChange, when set, is invoked after every state transition.
	OnStateChange func(State)
}

// Gateway owns the single live connection to the accounts service.
//
// The connection lifecycle is an explicit two-state machine. The service
// counts as registered exactly while a watch stream is established, so a
// (re)connect always resubscribes to all notification classes before the
// state becomes Connected; notifications delivered while disconnected are
// not retained by the service and are not replayed. Calls issued while
// Disconnected fail immediately with NotAvailable instead of queuing.
//
// Notifications are decoded at this boundary and handed to the sink in
// arrival order from a single goroutine.
type Gateway struct {
	cfg  GatewayConfig
	log  logging.Logger
	sink func(Notification)

	mu     sync.Mutex
	state  State
	client *ManagerClient
}

// NewGateway creates a gateway delivering notifications to sink. Run must be
// called to drive the connection.
func NewGateway(cfg GatewayConfig, log logging.Logger, sink func(Notification)) *Gateway {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 3 * time.Second
	}
	return &Gateway{
		cfg:  cfg,
		log:  log.With("module", "gateway"),
		sink: sink,
	}
}

// State returns the current connection state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Run drives the connection until ctx is canceled: connect, subscribe,
// deliver notifications, and on stream loss tear down and retry after the
// reconnect interval. Returns ctx.Err().
func (g *Gateway) Run(ctx context.Context) error {
	defer g.disconnect(ctx)

	for {
		if err := g.connect(); err != nil {
			g.log.Warn(ctx, "dialing accounts service failed", "target", g.cfg.Target, "error", err)
		} else {
			g.watch(ctx)
		}
		g.disconnect(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.cfg.ReconnectInterval):
		}
	}
}

// connect creates the client if there is none. Idempotent; the state stays
// Disconnected until a watch stream is established.
func (g *Gateway) connect() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return nil
	}
	c, err := DialManager(g.cfg.Target, g.cfg.DialOptions...)
	if err != nil {
		return err
	}
	g.client = c
	return nil
}

// disconnect drops the client and transitions to Disconnected. Idempotent.
func (g *Gateway) disconnect(ctx context.Context) {
	g.mu.Lock()
	c := g.client
	g.client = nil
	changed := g.state != Disconnected
	g.state = Disconnected
	g.mu.Unlock()

	if c != nil {
		_ = c.Close()
	}
	if changed {
		g.log.Info(ctx, "accounts service deregistered")
		if g.cfg.OnStateChange != nil {
			g.cfg.OnStateChange(Disconnected)
		}
	}
}

func (g *Gateway) watch(ctx context.Context) {
	g.mu.Lock()
	c := g.client
	g.mu.Unlock()
	if c == nil {
		return
	}

	stream, err := c.Watch(ctx)
	if err != nil {
		g.log.Debug(ctx, "accounts service not reachable", "error", err)
		return
	}

	g.mu.Lock()
	g.state = Connected
	g.mu.Unlock()
	g.log.Info(ctx, "accounts service registered", "target", g.cfg.Target)
	if g.cfg.OnStateChange != nil {
		g.cfg.OnStateChange(Connected)
	}

	for {
		n, err := stream.Recv()
		if err != nil {
			if ctx.Err() == nil {
				g.log.Warn(ctx, "watch stream lost", "error", err)
			}
			return
		}
		g.sink(n)
	}
}

// ready returns the client while Connected, or NotAvailable.
func (g *Gateway) ready() (*ManagerClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Connected || g.client == nil {
		return nil, notAvailable()
	}
	return g.client, nil
}

func (g *Gateway) AddUser(ctx context.Context, name string) (uint32, error) {
	c, err := g.ready()
	if err != nil {
		return 0, err
	}
	return c.AddUser(ctx, name)
}

func (g *Gateway) ModifyUser(ctx context.Context, uid uint32, name string) error {
	c, err := g.ready()
	if err != nil {
		return err
	}
	return c.ModifyUser(ctx, uid, name)
}

func (g *Gateway) RemoveUser(ctx context.Context, uid uint32) error {
	c, err := g.ready()
	if err != nil {
		return err
	}
	return c.RemoveUser(ctx, uid)
}

func (g *Gateway) SetCurrentUser(ctx context.Context, uid uint32) error {
	c, err := g.ready()
	if err != nil {
		return err
	}
	return c.SetCurrentUser(ctx, uid)
}

func (g *Gateway) AddToGroups(ctx context.Context, uid uint32, groups []string) error {
	c, err := g.ready()
	if err != nil {
		return err
	}
	return c.AddToGroups(ctx, uid, groups)
}

func (g *Gateway) RemoveFromGroups(ctx context.Context, uid uint32, groups []string) error {
	c, err := g.ready()
	if err != nil {
		return err
	}
	return c.RemoveFromGroups(ctx, uid, groups)
}

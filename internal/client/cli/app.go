package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/term"

	"github.com/multiseat/userlist/internal/client/config"
	"github.com/multiseat/userlist/internal/logging"
	"github.com/multiseat/userlist/internal/remote"
	"github.com/multiseat/userlist/internal/sysusers"
	"github.com/multiseat/userlist/internal/users"
)

// App owns the wired-up client: system databases, gateway, model, printer.
type App struct {
	config  *config.Config
	log     logging.Logger
	groups  *sysusers.Groups
	gateway *remote.Gateway
	model   *users.Model
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	groups, err := sysusers.NewGroups(cfg.GroupPath, logger)
	if err != nil {
		return nil, err
	}

	dir := &sysusers.Files{
		PasswdPath:  cfg.PasswdPath,
		GroupPath:   cfg.GroupPath,
		MemberGroup: cfg.UsersGroup,
		AdminGroup:  cfg.AdminGroup,
	}
	session := sysusers.FileSession{Path: cfg.SessionPath}

	a := &App{
		config: cfg,
		log:    logger,
		groups: groups,
		done:   make(chan struct{}),
	}

	gw := remote.NewGateway(remote.GatewayConfig{
		Target:            cfg.ServerEndpointAddr,
		ReconnectInterval: cfg.ReconnectInterval,
		OnStateChange: func(s remote.State) {
			printlnFn(fmt.Sprintf("[accounts service %s]", s))
		},
	}, logger, func(n remote.Notification) {
		a.model.Apply(n)
	})
	a.gateway = gw

	model, err := users.New(users.Config{CallTimeout: cfg.CallTimeout}, logger, gw, dir, session, groups)
	if err != nil {
		_ = groups.Close()
		return nil, err
	}
	a.model = model
	model.Subscribe(&printer{})

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go func() {
		defer close(a.done)
		_ = gw.Run(ctx)
	}()

	return a, nil
}

// Run starts the REPL and blocks until the user exits or stdin closes.
func (a *App) Run() {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		printlnFn("userctl (type 'help' for commands)")
	}
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(a, a.status, scanner)
}

func (a *App) status() string {
	return a.gateway.State().String()
}

// Close tears the client down, aggregating shutdown errors.
func (a *App) Close() error {
	var result *multierror.Error

	a.cancel()
	<-a.done
	result = multierror.Append(result, a.model.Close())
	result = multierror.Append(result, a.groups.Close())

	return result.ErrorOrNil()
}

// ---- commands ----

func (a *App) List() {
	for _, u := range a.model.Users() {
		marks := ""
		if u.Current {
			marks += " *current"
		}
		if u.Placeholder {
			marks += " (new user)"
			printlnFn(fmt.Sprintf("%3d: %q%s", u.Row, u.Name, marks))
			continue
		}
		printlnFn(fmt.Sprintf("%3d: %-12s uid=%-6d %-7s %q%s", u.Row, u.Username, u.UID, u.Kind, u.Name, marks))
	}
}

// Add opens (or reuses) the placeholder, names it, and commits it.
func (a *App) Add(name string) {
	a.model.SetPlaceholder(true)
	a.model.SetName(a.model.RowCount()-1, name)
	a.model.CreateUser()
}

func (a *App) Rename(row int, name string) {
	a.model.SetName(row, name)
}

func (a *App) Remove(row int) {
	a.model.RemoveUser(row)
}

func (a *App) Switch(row int) {
	a.model.SetCurrentUser(row)
}

func (a *App) ShowGroup(row int, group string) {
	printlnFn(fmt.Sprintf("row %d in %s: %v", row, group, a.model.HasGroup(row, group)))
}

func (a *App) AddGroups(row int, groups []string) {
	a.model.AddGroups(row, groups)
}

func (a *App) RemoveGroups(row int, groups []string) {
	a.model.RemoveGroups(row, groups)
}

func (a *App) Reset(row int) {
	a.model.Reset(row)
}

func (a *App) Dismiss() {
	a.model.SetPlaceholder(false)
}

// printer echoes model events to the terminal. Observer callbacks run on
// the model's sequencing point, so it only formats the event payloads and
// never reads back into the model.
type printer struct {
	users.NopObserver
}

func (p *printer) RowsInserted(row, count int) {
	printlnFn(fmt.Sprintf("[row %d added]", row))
}

func (p *printer) RowsRemoved(row, count int) {
	printlnFn(fmt.Sprintf("[row %d removed]", row))
}

func (p *printer) RowChanged(row int, attrs users.Attr) {
	if attrs&users.AttrCurrent != 0 {
		printlnFn(fmt.Sprintf("[current flag changed on row %d]", row))
	}
}

func (p *printer) GroupsChanged(row int) {
	printlnFn(fmt.Sprintf("[groups changed for row %d]", row))
}

func (p *printer) OperationFailed(f users.Failure) {
	printlnFn(fmt.Sprintf("[%s failed: %s]", f.Op, f.Code))
}

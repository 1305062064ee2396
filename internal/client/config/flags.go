package config

import (
	"flag"
	"os"
	"time"

	"github.com/multiseat/userlist/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the accounts service (default from Config)
//	-i int      reconnect interval in seconds (default from Config)
//
// The function filters os.Args down to the flags it knows about, via
// flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port of the accounts service")
	reconnect := fs.Int("i", int(cfg.ReconnectInterval.Seconds()), "reconnect interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.ReconnectInterval = time.Duration(*reconnect) * time.Second
}

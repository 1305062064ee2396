// Command accountsim runs the in-memory accounts service simulator. It
// speaks the same wire contract as the privileged daemon and exists for
// development and manual testing of userctl; it manages no real accounts.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/multiseat/userlist/internal/logging"
	"github.com/multiseat/userlist/internal/remote"
	"github.com/multiseat/userlist/internal/remote/remotesim"
)

func main() {

	addr := flag.String("a", "127.0.0.1:7600", "address and port to listen on")
	flag.Parse()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	svc := remotesim.New(logger)
	svc.Seed(
		remote.Entry{UID: 100000, Username: "defaultuser", Name: "Default User"},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := remotesim.NewServer(*addr, svc, logger)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}

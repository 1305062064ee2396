package remotesim

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/multiseat/userlist/internal/logging"
	"github.com/multiseat/userlist/internal/remote"
)

// Server exposes a Service over gRPC.
type Server struct {
	address string
	service *Service
	logger  logging.Logger
}

func NewServer(address string, svc *Service, l logging.Logger) *Server {
	return &Server{
		address: address,
		service: svc,
		logger:  l.With("module", "sim_server"),
	}
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer()

	// registers service
	remote.RegisterManagerServer(srv, s.service)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping simulator...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting accounts simulator", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

package grpcserver

import (
	"errors"
	"net"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/937bb/937cms-sub001/internal/logging"
	"github.com/937bb/937cms-sub001/internal/resync"
)

// ServiceName is the health service entry that tracks whether the
// normalized tables are complete.
const ServiceName = "vodsync.normalized"

// Server exposes grpc.health.v1. The overall server reports SERVING while it
// is up; ServiceName follows the resync runs.
type Server struct {
	GRPC   *grpc.Server
	Health *health.Server
	log    *logrus.Entry
}

func NewServer(log *logrus.Entry) *Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_UNKNOWN)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{GRPC: gs, Health: hs, log: logging.Component(log, "grpc")}
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.WithField("addr", ln.Addr().String()).Info("grpc health listening")
	return s.GRPC.Serve(ln)
}

func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Stop() {
	s.Health.Shutdown()
	s.GRPC.GracefulStop()
}

// OnState marks the tables unavailable from the moment they are truncated.
// A run that fails before truncating leaves the previous status alone; a
// failed truncate is handled in OnFinish.
func (s *Server) OnState(e resync.StateEvent) {
	switch e.To {
	case resync.Truncated, resync.Paging:
		s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	case resync.Failed:
		if e.From == resync.Truncated || e.From == resync.Paging {
			s.set(healthpb.HealthCheckResponse_NOT_SERVING)
		}
	case resync.Completed:
		s.set(healthpb.HealthCheckResponse_SERVING)
	}
}

func (s *Server) OnProgress(resync.Progress) {}

func (s *Server) OnFinish(r resync.Report) {
	switch {
	case r.State == resync.Completed:
		s.set(healthpb.HealthCheckResponse_SERVING)
	case errors.Is(r.Err, resync.ErrTruncate):
		s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.Health.SetServingStatus(ServiceName, st)
	s.log.WithField("status", st.String()).Debug("health updated")
}

package grpcserver

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/937bb/937cms-sub001/internal/logging"
	"github.com/937bb/937cms-sub001/internal/resync"
)

func dial(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()
	ln := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return ln.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthFollowsRuns(t *testing.T) {
	s := NewServer(logging.Discard())
	c := dial(t, s)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_UNKNOWN, check(t, c, ServiceName))

	s.OnState(resync.StateEvent{From: resync.Idle, To: resync.SchemaEnsured})
	assert.Equal(t, healthpb.HealthCheckResponse_UNKNOWN, check(t, c, ServiceName))

	s.OnState(resync.StateEvent{From: resync.SchemaEnsured, To: resync.Truncated})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, ServiceName))

	s.OnState(resync.StateEvent{From: resync.Paging, To: resync.Completed})
	s.OnFinish(resync.Report{State: resync.Completed})
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, ServiceName))

	s.OnState(resync.StateEvent{From: resync.Paging, To: resync.Failed})
	s.OnFinish(resync.Report{State: resync.Failed})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, ServiceName))
}

func TestHealthKeepsStatusWhenFailingBeforeTruncate(t *testing.T) {
	s := NewServer(logging.Discard())
	c := dial(t, s)

	s.OnState(resync.StateEvent{From: resync.Paging, To: resync.Completed})
	s.OnFinish(resync.Report{State: resync.Completed})
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, ServiceName))

	for _, from := range []resync.State{resync.Idle, resync.SchemaEnsured} {
		t.Run(from.String(), func(t *testing.T) {
			s.OnState(resync.StateEvent{From: from, To: resync.Failed})
			s.OnFinish(resync.Report{State: resync.Failed})
			assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, ServiceName))
		})
	}

	s.OnState(resync.StateEvent{From: resync.SchemaEnsured, To: resync.Truncated})
	s.OnState(resync.StateEvent{From: resync.Truncated, To: resync.Failed})
	s.OnFinish(resync.Report{State: resync.Failed})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, ServiceName))
}

func TestHealthFailedTruncateIsNotServing(t *testing.T) {
	s := NewServer(logging.Discard())
	c := dial(t, s)

	s.OnState(resync.StateEvent{From: resync.Paging, To: resync.Completed})
	s.OnFinish(resync.Report{State: resync.Completed})

	cause := &resync.RunError{
		Kind:  resync.ErrStorageIO,
		State: resync.SchemaEnsured,
		Err:   fmt.Errorf("%w: disk full", resync.ErrTruncate),
	}
	s.OnState(resync.StateEvent{From: resync.SchemaEnsured, To: resync.Failed})
	s.OnFinish(resync.Report{State: resync.Failed, Err: cause})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, ServiceName))
}

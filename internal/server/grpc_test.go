package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// togglePinger fails while down is set.
type togglePinger struct {
	mu   sync.Mutex
	down bool
}

func (p *togglePinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		return errors.New("connection refused")
	}
	return nil
}

func (p *togglePinger) set(down bool) {
	p.mu.Lock()
	p.down = down
	p.mu.Unlock()
}

func checkStatus(t *testing.T, hs *health.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func waitStatus(t *testing.T, hs *health.Server, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if checkStatus(t, hs, ServiceName) == want && checkStatus(t, hs, "") == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("health status never became %s", want)
}

func TestNewGRPCServer_StartsNotServing(t *testing.T) {
	srv, hs := NewGRPCServer(discardLogger())
	defer srv.Stop()
	if got := checkStatus(t, hs, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("initial status = %s, want NOT_SERVING", got)
	}
}

func TestWatchHealth(t *testing.T) {
	srv, hs := NewGRPCServer(discardLogger())
	defer srv.Stop()

	p := &togglePinger{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		WatchHealth(ctx, hs, p, 10*time.Millisecond, discardLogger())
	}()

	waitStatus(t, hs, healthpb.HealthCheckResponse_SERVING)
	p.set(true)
	waitStatus(t, hs, healthpb.HealthCheckResponse_NOT_SERVING)
	p.set(false)
	waitStatus(t, hs, healthpb.HealthCheckResponse_SERVING)

	cancel()
	<-done
	if got := checkStatus(t, hs, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status after shutdown = %s, want NOT_SERVING", got)
	}
}

func TestGRPCHealthOverNetwork(t *testing.T) {
	srv, hs := NewGRPCServer(discardLogger())
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %s, want SERVING", resp.GetStatus())
	}
}

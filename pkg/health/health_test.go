package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"talking-avatar/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestCriticalComponentDownIsUnhealthy(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)

	dbErr := errors.New("connection refused")
	c.RegisterStoreCheck(func(context.Context) error { return dbErr })
	c.RegisterProvidersCheck(func() bool { return true })
	c.RunChecks(context.Background())

	assert.False(t, c.IsSystemHealthy())

	status := c.GetStatus()
	assert.Equal(t, StatusDown, status["store"].Status)
	assert.Equal(t, "connection refused", status["store"].Error)
	assert.Equal(t, StatusUp, status["providers"].Status)
}

func TestDegradedComponentsKeepSystemHealthy(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)

	c.RegisterStoreCheck(func(context.Context) error { return nil })
	c.RegisterProvidersCheck(func() bool { return false })
	c.RegisterBinaryCheck("rhubarb", "/definitely/not/here/rhubarb")
	c.RunChecks(context.Background())

	assert.True(t, c.IsSystemHealthy())
	status := c.GetStatus()
	assert.Equal(t, StatusDegraded, status["providers"].Status)
	assert.Equal(t, StatusDegraded, status["tool-rhubarb"].Status)
}

func TestUncheckedCriticalComponentIsDown(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	c.RegisterStoreCheck(func(context.Context) error { return nil })

	assert.False(t, c.IsSystemHealthy())
}

func TestHTTPHandler(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	up := true
	c.RegisterStoreCheck(func(context.Context) error {
		if up {
			return nil
		}
		return errors.New("down")
	})

	c.RunChecks(context.Background())
	w := httptest.NewRecorder()
	c.HTTPHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status     string                `json:"status"`
		Components map[string]*Component `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Contains(t, body.Components, "store")

	up = false
	c.RunChecks(context.Background())
	w = httptest.NewRecorder()
	c.HTTPHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestChecksHonourTimeout(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	c.checkTimeout = 10 * time.Millisecond
	c.RegisterStoreCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	c.RunChecks(context.Background())
	assert.Equal(t, StatusDown, c.GetStatus()["store"].Status)
}

func TestGRPCServerFollowsChecker(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	up := true
	c.RegisterStoreCheck(func(context.Context) error {
		if up {
			return nil
		}
		return errors.New("down")
	})

	srv := NewGRPCServer(c)
	ctx := context.Background()

	status, err := srv.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)

	c.RunChecks(ctx)
	status, err = srv.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	up = false
	c.RunChecks(ctx)
	status, err = srv.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)
}

func TestGRPCServerOverNetwork(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	c.RegisterProvidersCheck(func() bool { return false })
	c.RunChecks(context.Background())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewGRPCServer(c)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/thejerf/suture/v4"
)

type flakyService struct {
	name   string
	starts atomic.Int32
	fails  int32
}

func (s *flakyService) Serve(ctx context.Context) error {
	if s.starts.Add(1) <= s.fails {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *flakyService) String() string { return s.name }

type panickingService struct{ starts atomic.Int32 }

func (s *panickingService) Serve(ctx context.Context) error {
	if s.starts.Add(1) == 1 {
		panic("boom")
	}
	<-ctx.Done()
	return ctx.Err()
}

type oneShotService struct{ starts atomic.Int32 }

func (s *oneShotService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	return suture.ErrDoNotRestart
}

func fastTree() *Tree {
	return NewTree(TreeConfig{FailureBackoff: 10 * time.Millisecond, ShutdownTimeout: time.Second})
}

func TestTree_RestartsFailedServiceWithoutTouchingSiblings(t *testing.T) {
	tree := fastTree()
	flaky := &flakyService{name: "flaky", fails: 2}
	steady := &flakyService{name: "steady"}
	tree.AddIngest(flaky)
	tree.AddServe(steady)

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)

	assert.Eventually(t, func() bool { return flaky.starts.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), steady.starts.Load())

	cancel()
	<-done
}

func TestTree_RecoversPanics(t *testing.T) {
	tree := fastTree()
	svc := &panickingService{}
	tree.AddServe(svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)
	assert.Eventually(t, func() bool { return svc.starts.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestTree_DoNotRestart(t *testing.T) {
	tree := fastTree()
	svc := &oneShotService{}
	tree.AddServe(svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)
	assert.Eventually(t, func() bool { return svc.starts.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), svc.starts.Load())

	cancel()
	<-done
}

func TestDefaultTreeConfig(t *testing.T) {
	cfg := DefaultTreeConfig()
	assert.Equal(t, 5.0, cfg.FailureThreshold)
	assert.Equal(t, 30.0, cfg.FailureDecay)
	assert.Equal(t, 15*time.Second, cfg.FailureBackoff)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLogEvent(t *testing.T) {
	var buf bytes.Buffer
	original := log.StandardLogger().Out
	log.SetOutput(&buf)
	defer log.SetOutput(original)

	LogEvent(suture.EventServiceTerminate{
		SupervisorName: "serve",
		ServiceName:    "console-display",
		Err:            errors.New("boom"),
	})
	assert.Contains(t, buf.String(), "level=error")
	assert.Contains(t, buf.String(), "console-display")
}

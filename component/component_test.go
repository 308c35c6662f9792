package component

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kbukum/anyhttp/logger"
)

// mockComponent implements Component for testing.
type mockComponent struct {
	name       string
	startErr   error
	stopErr    error
	health     Health
	startOrder *[]string
	stopOrder  *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.startOrder != nil {
		*m.startOrder = append(*m.startOrder, m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.stopOrder != nil {
		*m.stopOrder = append(*m.stopOrder, m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health {
	return m.health
}

type describedComponent struct {
	mockComponent
}

func (d *describedComponent) Describe() Description {
	return Description{Type: "httpclient", Details: "engine=wire"}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(&mockComponent{name: "client"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&mockComponent{name: "client"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "client"})

	if got := r.Get("client"); got == nil || got.Name() != "client" {
		t.Fatalf("expected registered component, got %v", got)
	}
	if r.Get("missing") != nil {
		t.Error("expected nil for unregistered component")
	}
	if len(r.All()) != 1 {
		t.Errorf("expected 1 component, got %d", len(r.All()))
	}
}

func TestRegistry_StartAll(t *testing.T) {
	r := NewRegistry(nil)
	order := []string{}
	_ = r.Register(&mockComponent{name: "telemetry", startOrder: &order})
	_ = r.Register(&mockComponent{name: "client", startOrder: &order})

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if strings.Join(order, ",") != "telemetry,client" {
		t.Errorf("expected start order [telemetry client], got %v", order)
	}

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("second StartAll failed: %v", err)
	}
	if len(order) != 2 {
		t.Errorf("expected started components to be skipped, got %v", order)
	}
}

func TestRegistry_StartAllError(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "client", startErr: fmt.Errorf("bad config")})

	err := r.StartAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to start client") {
		t.Errorf("expected start error, got %v", err)
	}
}

func TestRegistry_StopAllReverseOrder(t *testing.T) {
	r := NewRegistry(nil)
	order := []string{}
	for _, name := range []string{"telemetry", "origin", "client"} {
		_ = r.Register(&mockComponent{name: name, stopOrder: &order})
	}

	_ = r.StartAll(context.Background())
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if strings.Join(order, ",") != "client,origin,telemetry" {
		t.Errorf("expected reverse stop order, got %v", order)
	}
}

func TestRegistry_StopAllSkipsUnstarted(t *testing.T) {
	r := NewRegistry(nil)
	order := []string{}
	_ = r.Register(&mockComponent{name: "client", stopOrder: &order})

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("expected 0 stops for unstarted components, got %d", len(order))
	}
}

func TestRegistry_StopAllWithErrors(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "a", stopErr: fmt.Errorf("stop a")})
	_ = r.Register(&mockComponent{name: "b", stopErr: fmt.Errorf("stop b")})
	_ = r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "stop a") || !strings.Contains(err.Error(), "stop b") {
		t.Errorf("expected both stop errors, got %v", err)
	}
}

func TestRegistry_HealthAll(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "client", health: Health{Name: "client", Status: StatusHealthy}})
	_ = r.Register(&mockComponent{name: "telemetry", health: Health{Name: "telemetry", Status: StatusDegraded}})

	results := r.HealthAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != StatusHealthy || results[1].Status != StatusDegraded {
		t.Errorf("unexpected health %v", results)
	}
}

func TestRegistry_LogsDescription(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", &buf)
	r := NewRegistry(log)
	_ = r.Register(&describedComponent{mockComponent{name: "client"}})

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if !strings.Contains(buf.String(), "httpclient engine=wire") {
		t.Errorf("expected description in log, got %s", buf.String())
	}
}

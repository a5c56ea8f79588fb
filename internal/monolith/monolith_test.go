package monolith

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/di"
	"github.com/fd1az/triarb-bot/internal/logger"
)

type recordingModule struct {
	name  string
	order *[]string
}

func (m recordingModule) RegisterServices(c di.Container) error {
	c.Register("module."+m.name, m.name)
	*m.order = append(*m.order, "register:"+m.name)
	return nil
}

func (m recordingModule) Startup(_ context.Context, mono Monolith) error {
	if mono.Services().Get("module."+m.name) != m.name {
		return errors.New("service not resolvable at startup")
	}
	*m.order = append(*m.order, "start:"+m.name)
	return nil
}

func TestApp_ModuleLifecycleAndClose(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelError, "test", nil)

	mono, err := New(&config.Config{}, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var order []string
	modules := []Module{recordingModule{"a", &order}, recordingModule{"b", &order}}

	if err := mono.RegisterModules(modules...); err != nil {
		t.Fatalf("RegisterModules: %v", err)
	}
	if err := mono.StartModules(context.Background(), modules...); err != nil {
		t.Fatalf("StartModules: %v", err)
	}

	want := []string{"register:a", "register:b", "start:a", "start:b"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}

	var closed []int
	mono.OnClose(func() error { closed = append(closed, 1); return nil })
	mono.OnClose(func() error { closed = append(closed, 2); return errors.New("boom") })

	if err := mono.Close(); err == nil {
		t.Error("expected joined close error")
	}
	if len(closed) != 2 || closed[0] != 2 || closed[1] != 1 {
		t.Errorf("close order = %v, want [2 1]", closed)
	}
	if err := mono.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

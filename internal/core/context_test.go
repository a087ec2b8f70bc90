package core

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"testing"

	"gopkg.in/yaml.v3"
)

// fakeStore stands in for a persistence module: it reads a path from its
// config section and registers itself as a service on Provision.
type fakeStore struct {
	id       ModuleID
	calls    *[]string
	path     string
	failStep string
}

func (s *fakeStore) ModuleInfo() ModuleInfo {
	proto := *s
	return ModuleInfo{
		ID: s.id,
		New: func() Module {
			cp := proto
			return &cp
		},
	}
}

func (s *fakeStore) record(step string) error {
	if s.calls != nil {
		*s.calls = append(*s.calls, step)
	}
	if s.failStep == step {
		return errors.New(step + " boom")
	}
	return nil
}

func (s *fakeStore) Configure(node *yaml.Node) error {
	if err := s.record("configure"); err != nil {
		return err
	}
	var raw struct {
		Path string `yaml:"path"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	s.path = raw.Path
	return nil
}

func (s *fakeStore) Provision(ctx *AppContext) error {
	if err := s.record("provision"); err != nil {
		return err
	}
	ctx.RegisterService(ServiceMemoryKV, s)
	return nil
}

func (s *fakeStore) Validate() error {
	return s.record("validate")
}

// plainModule has no lifecycle hooks at all.
type plainModule struct{ id ModuleID }

func (m plainModule) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module { return plainModule{id: m.id} }}
}

func yamlSection(t *testing.T, src string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return *doc.Content[0]
}

func TestAppContext_ForModule(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := NewAppContext(logger, "/var/lib/chatmem").
		WithModuleConfigs(map[string]yaml.Node{"memory.sqlite": yamlSection(t, "path: a.db")})
	child := ctx.ForModule("memory.sqlite")
	child.Logger.Info("opened")

	if !bytes.Contains(buf.Bytes(), []byte("module=memory.sqlite")) {
		t.Errorf("child logger lacks module attr: %s", buf.String())
	}
	if child.DataDir != "/var/lib/chatmem" {
		t.Errorf("DataDir = %q", child.DataDir)
	}
	if _, ok := child.moduleConfigs["memory.sqlite"]; !ok {
		t.Error("module configs not propagated")
	}
	child.RegisterService("x", 1)
	if _, ok := ctx.Service("x"); !ok {
		t.Error("child context does not share the service registry")
	}
}

func TestAppContext_LoadModule(t *testing.T) {
	tests := []struct {
		name      string
		failStep  string
		section   string
		wantCalls []string
		wantPath  string
		wantErr   bool
	}{
		{
			name:      "with config",
			section:   "path: conversations.db",
			wantCalls: []string{"configure", "provision", "validate"},
			wantPath:  "conversations.db",
		},
		{
			name:      "without config",
			wantCalls: []string{"provision", "validate"},
		},
		{
			name:      "configure fails",
			section:   "path: x",
			failStep:  "configure",
			wantCalls: []string{"configure"},
			wantErr:   true,
		},
		{
			name:      "provision fails",
			failStep:  "provision",
			wantCalls: []string{"provision"},
			wantErr:   true,
		},
		{
			name:      "validate fails",
			failStep:  "validate",
			wantCalls: []string{"provision", "validate"},
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(resetRegistry)

			var calls []string
			RegisterModule(&fakeStore{id: "memory.fake", calls: &calls, failStep: tt.failStep})

			ctx := NewAppContext(nil, t.TempDir())
			if tt.section != "" {
				ctx = ctx.WithModuleConfigs(map[string]yaml.Node{"memory.fake": yamlSection(t, tt.section)})
			}

			mod, err := ctx.LoadModule("memory.fake")
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadModule() error = %v, wantErr %t", err, tt.wantErr)
			}
			if !slices.Equal(calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
			if tt.wantErr {
				return
			}
			store := mod.(*fakeStore)
			if store.path != tt.wantPath {
				t.Errorf("path = %q, want %q", store.path, tt.wantPath)
			}
			if svc, ok := ctx.Service(ServiceMemoryKV); !ok || svc != store {
				t.Error("store did not register its KV service")
			}
		})
	}
}

func TestAppContext_LoadModule_UnknownID(t *testing.T) {
	t.Cleanup(resetRegistry)

	if _, err := NewAppContext(nil, "").LoadModule("memory.nope"); err == nil {
		t.Fatal("expected error for unknown module")
	}
}

func TestAppContext_LoadModule_IgnoresConfigForPlainModule(t *testing.T) {
	t.Cleanup(resetRegistry)
	RegisterModule(plainModule{id: "memory.plain"})

	ctx := NewAppContext(nil, "").
		WithModuleConfigs(map[string]yaml.Node{"memory.plain": yamlSection(t, "path: ignored")})
	if _, err := ctx.LoadModule("memory.plain"); err != nil {
		t.Fatalf("LoadModule() error: %v", err)
	}
}

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Worker.PoolSize != 4 || cfg.Worker.MetricsPort != 9090 {
		t.Errorf("worker defaults: %+v", cfg.Worker)
	}
	if cfg.Judge.CompileTimeout != 30*time.Second || cfg.Judge.CompileMemoryMB != 512 {
		t.Errorf("judge defaults: %+v", cfg.Judge)
	}
	if cfg.Judge.PresentationError {
		t.Error("presentation error must be off by default")
	}
	if cfg.Sandbox.Backend != BackendDocker || cfg.Sandbox.Image != "judge-toolchain:latest" {
		t.Errorf("sandbox defaults: %+v", cfg.Sandbox)
	}
	if cfg.Sandbox.CPUs != 1 || cfg.Sandbox.PidsLimit != 64 || cfg.Sandbox.StartupGrace != 500*time.Millisecond {
		t.Errorf("sandbox limits: %+v", cfg.Sandbox)
	}
	if cfg.Sandbox.NsjailCgroup != "/sys/fs/cgroup/sentinel-judge" {
		t.Errorf("cgroup root default: %q", cfg.Sandbox.NsjailCgroup)
	}
	if len(cfg.Judge.Flags) != 0 || len(cfg.Sandbox.Images) != 0 {
		t.Error("no per-language overrides expected")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JUDGE_POOL_SIZE", "8")
	t.Setenv("JUDGE_COMPILE_TIMEOUT", "10s")
	t.Setenv("JUDGE_PRESENTATION_ERROR", "true")
	t.Setenv("SANDBOX_BACKEND", "NSJAIL")
	t.Setenv("SANDBOX_CPUS", "0.5")
	t.Setenv("SANDBOX_IMAGE_JAVA", "eclipse-temurin:21")
	t.Setenv("JUDGE_FLAGS_CPP", `-std=c++20 -O2 -DONLINE_JUDGE "-Wl,--stack=268435456"`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Worker.PoolSize != 8 || cfg.Judge.CompileTimeout != 10*time.Second || !cfg.Judge.PresentationError {
		t.Errorf("overrides not applied: %+v %+v", cfg.Worker, cfg.Judge)
	}
	if cfg.Sandbox.Backend != BackendNsjail || cfg.Sandbox.CPUs != 0.5 {
		t.Errorf("sandbox overrides not applied: %+v", cfg.Sandbox)
	}
	if cfg.Sandbox.Images[domain.LangJava] != "eclipse-temurin:21" {
		t.Errorf("image override: %v", cfg.Sandbox.Images)
	}
	got := strings.Join(cfg.Judge.Flags[domain.LangCpp], "|")
	if got != "-std=c++20|-O2|-DONLINE_JUDGE|-Wl,--stack=268435456" {
		t.Errorf("flags not split shell-style: %q", got)
	}
}

func TestLoad_EmptyFlagsClearDefaults(t *testing.T) {
	t.Setenv("JUDGE_FLAGS_C", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	flags, ok := cfg.Judge.Flags[domain.LangC]
	if !ok || len(flags) != 0 {
		t.Errorf("expected explicit empty flags, got %v (set=%v)", flags, ok)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][2]string{
		"backend":       {"SANDBOX_BACKEND", "gvisor"},
		"pool size":     {"JUDGE_POOL_SIZE", "0"},
		"unterminated":  {"JUDGE_FLAGS_GO", `-ldflags "-s`},
		"compile limit": {"JUDGE_COMPILE_TIMEOUT", "0s"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", kv[0], kv[1])
			}
		})
	}
}

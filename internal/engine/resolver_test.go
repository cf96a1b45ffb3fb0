package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Runbook/internal/domain"
)

func TestResolve_Variables(t *testing.T) {
	rctx := NewResolveContext(map[string]string{
		"target": "example.com",
		"port":   "8443",
	}, nil)

	got, err := Resolve("scan ${target}:${port}", rctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "scan example.com:8443" {
		t.Errorf("got %q", got)
	}
}

func TestResolve_StepProperties(t *testing.T) {
	results := map[string]*domain.StepResult{
		"probe": {
			StepID:   "probe",
			Status:   domain.StepStatusSucceeded,
			ExitCode: 0,
			Stdout:   "  10.0.0.1\n10.0.0.2\n\n",
			Stderr:   "warning: slow\n",
		},
	}
	rctx := NewResolveContext(nil, results)

	cases := []struct {
		tmpl string
		want string
	}{
		{"${probe.stdout}", "10.0.0.1\n10.0.0.2"},
		{"${probe.stderr}", "warning: slow"},
		{"${probe.exit_code}", "0"},
		{"${probe.status}", "SUCCEEDED"},
		{"${probe.lines}", "2"},
	}

	for _, tc := range cases {
		got, err := Resolve(tc.tmpl, rctx)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.tmpl, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.tmpl, got, tc.want)
		}
	}
}

func TestResolve_VariablePriority(t *testing.T) {
	// Переменная с точкой в имени перекрывает ссылку на шаг
	rctx := NewResolveContext(
		map[string]string{"probe.stdout": "override"},
		map[string]*domain.StepResult{
			"probe": {StepID: "probe", Stdout: "real"},
		},
	)

	got, err := Resolve("${probe.stdout}", rctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "override" {
		t.Errorf("got %q, want %q", got, "override")
	}
}

func TestResolve_NoRescan(t *testing.T) {
	// Значение подстановки не сканируется повторно:
	// плейсхолдеры внутри переменных не раскрываются
	rctx := NewResolveContext(map[string]string{
		"inject": "${secret}",
		"secret": "hunter2",
	}, nil)

	got, err := Resolve("echo ${inject}", rctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "echo ${secret}" {
		t.Errorf("got %q, want literal placeholder preserved", got)
	}
}

func TestResolve_Unresolved(t *testing.T) {
	rctx := NewResolveContext(nil, nil)

	cases := []string{
		"${missing}",
		"${probe.stdout}",
	}
	for _, tmpl := range cases {
		_, err := Resolve(tmpl, rctx)
		if !errors.Is(err, ErrUnresolvedReference) {
			t.Errorf("%s: expected ErrUnresolvedReference, got %v", tmpl, err)
		}
	}
}

func TestResolve_UnknownStepProperty(t *testing.T) {
	rctx := NewResolveContext(nil, map[string]*domain.StepResult{
		"probe": {StepID: "probe"},
	})

	_, err := Resolve("${probe.pid}", rctx)
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Errorf("expected ErrUnresolvedReference, got %v", err)
	}
}

func TestResolve_UnclosedPlaceholder(t *testing.T) {
	rctx := NewResolveContext(map[string]string{"a": "1"}, nil)

	got, err := Resolve("echo ${a} tail ${unclosed", rctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "echo 1 tail ${unclosed" {
		t.Errorf("got %q", got)
	}
}

func TestResolve_NoPlaceholders(t *testing.T) {
	rctx := NewResolveContext(nil, nil)

	got, err := Resolve("plain command", rctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "plain command" {
		t.Errorf("got %q", got)
	}
}

func TestResolveEnv(t *testing.T) {
	rctx := NewResolveContext(map[string]string{"token": "abc"}, nil)

	env, err := ResolveEnv(map[string]string{
		"API_TOKEN": "${token}",
		"STATIC":    "value",
	}, rctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if env["API_TOKEN"] != "abc" {
		t.Errorf("API_TOKEN = %q", env["API_TOKEN"])
	}
	if env["STATIC"] != "value" {
		t.Errorf("STATIC = %q", env["STATIC"])
	}
}

func TestCountLines(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"\n\n", 0},
		{"one", 1},
		{"one\ntwo\n", 2},
		{"one\n  \ntwo", 2},
	}
	for _, tc := range cases {
		if got := countLines(tc.in); got != tc.want {
			t.Errorf("countLines(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Runbook/internal/domain"
)

func condCtx() *ResolveContext {
	return NewResolveContext(
		map[string]string{
			"env":   "prod",
			"count": "5",
		},
		map[string]*domain.StepResult{
			"build": {
				StepID:   "build",
				Status:   domain.StepStatusSucceeded,
				ExitCode: 0,
				Stdout:   "ok\nartifacts: 3\n",
			},
			"scan": {
				StepID:   "scan",
				Status:   domain.StepStatusFailed,
				ExitCode: 2,
				Stdout:   "vuln-1\nvuln-2\n",
			},
			"cleanup": {
				StepID: "cleanup",
				Status: domain.StepStatusSkipped,
			},
		},
	)
}

func TestCondition_Eval(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{"", true},
		{"true", true},
		{"false", false},
		{"!false", true},
		{"build.exit_code == 0", true},
		{"scan.exit_code == 0", false},
		{"scan.exit_code != 0", true},
		{"scan.exit_code > 1", true},
		{"scan.exit_code >= 2", true},
		{"build.exit_code < 1", true},
		{"build.status == 'SUCCEEDED'", true},
		{"scan.status == \"FAILED\"", true},
		{"build.succeeded", true},
		{"scan.failed", true},
		{"!scan.failed", false},
		{"cleanup.skipped", true},
		{"build.stdout != ''", true},
		{"scan.lines == 2", true},
		{"scan.lines > 0 && build.succeeded", true},
		{"scan.succeeded || build.succeeded", true},
		{"scan.succeeded && build.succeeded", false},
		{"env == 'prod'", true},
		{"env != 'prod'", false},
		{"count > 3", true},
		{"count == 5", true},
		{"(build.succeeded || scan.succeeded) && count >= 5", true},
		{"!(scan.exit_code == 2)", false},
	}

	rctx := condCtx()
	for _, tc := range cases {
		cond, err := ParseCondition(tc.expr)
		if err != nil {
			t.Errorf("%q: parse error: %v", tc.expr, err)
			continue
		}
		got, err := cond.Eval(rctx)
		if err != nil {
			t.Errorf("%q: eval error: %v", tc.expr, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: got %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestCondition_ParseErrors(t *testing.T) {
	cases := []string{
		"build.exit_code =",
		"build.exit_code == ",
		"== 0",
		"(build.succeeded",
		"build.unknown_prop == 1",
		"'unterminated",
		"a && ",
		"a @ b",
	}

	for _, expr := range cases {
		_, err := ParseCondition(expr)
		if !errors.Is(err, ErrConditionParse) {
			t.Errorf("%q: expected ErrConditionParse, got %v", expr, err)
		}
	}
}

func TestCondition_EvalErrors(t *testing.T) {
	rctx := condCtx()

	cases := []string{
		// Неизвестная переменная
		"missing == 'x'",
		// Строка в числовом сравнении
		"env > 3",
		// Небулев корень выражения
		"build.stdout",
		// Булево с небулевым в сравнении
		"build.succeeded == 'yes'",
		// Небулев операнд логики
		"env && build.succeeded",
	}

	for _, expr := range cases {
		cond, err := ParseCondition(expr)
		if err != nil {
			t.Fatalf("%q: unexpected parse error: %v", expr, err)
		}
		if _, err := cond.Eval(rctx); !errors.Is(err, ErrConditionEval) {
			t.Errorf("%q: expected ErrConditionEval, got %v", expr, err)
		}
	}
}

func TestCondition_Deferred(t *testing.T) {
	// Ссылка на шаг без результата откладывает вычисление
	rctx := condCtx()

	cond, err := ParseCondition("deploy.exit_code == 0")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	_, err = cond.Eval(rctx)
	if !errors.Is(err, ErrConditionDeferred) {
		t.Errorf("expected ErrConditionDeferred, got %v", err)
	}
}

func TestCondition_DeferredBeatsShortCircuit(t *testing.T) {
	// Даже если левый операнд || уже true, ссылка на незавершённый
	// шаг справа откладывает вычисление целиком
	rctx := condCtx()

	cond, err := ParseCondition("build.succeeded || deploy.succeeded")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	_, err = cond.Eval(rctx)
	if !errors.Is(err, ErrConditionDeferred) {
		t.Errorf("expected ErrConditionDeferred, got %v", err)
	}
}

func TestCondition_TimedOutCountsAsFailed(t *testing.T) {
	rctx := NewResolveContext(nil, map[string]*domain.StepResult{
		"slow": {StepID: "slow", Status: domain.StepStatusTimedOut, ExitCode: -1},
	})

	cond, err := ParseCondition("slow.failed")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	got, err := cond.Eval(rctx)
	if err != nil {
		t.Fatalf("unexpected eval error: %v", err)
	}
	if !got {
		t.Error("TIMED_OUT step should count as failed")
	}
}

func TestCondition_StepRefs(t *testing.T) {
	cond, err := ParseCondition("build.succeeded && (scan.lines > 0 || env == 'prod')")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	refs := cond.StepRefs()
	if len(refs) != 2 {
		t.Fatalf("expected 2 step refs, got %v", refs)
	}
	if refs[0].StepID != "build" || refs[1].StepID != "scan" {
		t.Errorf("unexpected refs: %v", refs)
	}
}

package cli

import (
	"bytes"
	"strings"
	"testing"
)

func testOutput() (*Output, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Output{w: &buf, errW: &buf}, &buf
}

func TestStepTable_SortedByStepID(t *testing.T) {
	out, buf := testOutput()

	out.StepTable([]StepRow{
		{StepID: "cleanup", Status: "SUCCEEDED"},
		{StepID: "build", Status: "FAILED", ExitCode: 2, Attempts: 3, Message: "exit code 2"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// Заголовок, разделитель и строки в порядке ID шага
	if len(lines) != 4 {
		t.Fatalf("lines = %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[2], "build") {
		t.Errorf("row 1 = %q, want build first", lines[2])
	}
	if !strings.HasPrefix(lines[3], "cleanup") {
		t.Errorf("row 2 = %q", lines[3])
	}
	if !strings.Contains(lines[2], "exit code 2") {
		t.Errorf("row 1 = %q, message missing", lines[2])
	}
}

func TestStepTable_DurationColumnOnlyWhenPresent(t *testing.T) {
	out, buf := testOutput()
	out.StepTable([]StepRow{{StepID: "A", Status: "SUCCEEDED"}})
	if strings.Contains(buf.String(), "DURATION") {
		t.Errorf("unexpected DURATION column:\n%s", buf.String())
	}

	out, buf = testOutput()
	out.StepTable([]StepRow{{StepID: "A", Status: "SUCCEEDED", Duration: "1.2s"}})
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if !strings.Contains(header, "DURATION") {
		t.Errorf("header = %q, want DURATION column", header)
	}
	if !strings.Contains(buf.String(), "1.2s") {
		t.Errorf("duration value missing:\n%s", buf.String())
	}
}

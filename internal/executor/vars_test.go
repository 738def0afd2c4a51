package executor

import (
	"strings"
	"testing"

	"github.com/eugenetaranov/courier/internal/record"
	"github.com/eugenetaranov/courier/internal/task"
	"github.com/eugenetaranov/courier/internal/workflow"
)

func TestInterpolateString(t *testing.T) {
	exec := New()
	rctx := &RunContext{
		Vars: map[string]any{
			"name":     "world",
			"greeting": "hello",
			"count":    42,
			"env": map[string]string{
				"HOME": "/home/user",
				"USER": "testuser",
			},
			"workflow": map[string]any{
				"name":        "nightly",
				"temp_folder": "/tmp/courier/nightly/1",
			},
		},
	}

	tests := []struct {
		name   string
		input  string
		want   any
		errMsg string
	}{
		{
			name:  "simple variable",
			input: "{{ name }}",
			want:  "world",
		},
		{
			name:  "variable in text",
			input: "Hello, {{ name }}!",
			want:  "Hello, world!",
		},
		{
			name:  "multiple variables",
			input: "{{ greeting }}, {{ name }}!",
			want:  "hello, world!",
		},
		{
			name:  "dotted path - env",
			input: "{{ env.HOME }}",
			want:  "/home/user",
		},
		{
			name:  "dotted path - workflow",
			input: "{{ workflow.temp_folder }}",
			want:  "/tmp/courier/nightly/1",
		},
		{
			name:  "integer variable",
			input: "{{ count }}",
			want:  42,
		},
		{
			name:  "undefined variable",
			input: "{{ undefined }}",
			want:  nil,
		},
		{
			name:  "undefined in text",
			input: "/outbox/{{ undefined }}",
			want:  "/outbox/",
		},
		{
			name:  "filter in text",
			input: "{{ env.USER | upper }}@{{ name }}",
			want:  "TESTUSER@world",
		},
		{
			name:  "no variables",
			input: "plain text",
			want:  "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := exec.interpolateString(tt.input, rctx)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if got != tt.want {
				t.Errorf("expected %v (%T), got %v (%T)", tt.want, tt.want, got, got)
			}
		})
	}
}

func TestLookupVariable(t *testing.T) {
	exec := New()
	rctx := &RunContext{
		Vars: map[string]any{
			"simple": "value",
			"nested": map[string]any{
				"key": "nested_value",
				"deep": map[string]any{
					"value": "deep_value",
				},
			},
		},
	}

	tests := []struct {
		name string
		key  string
		want any
	}{
		{"simple var", "simple", "value"},
		{"nested var", "nested.key", "nested_value"},
		{"deep nested", "nested.deep.value", "deep_value"},
		{"map var", "nested", map[string]any{"key": "nested_value"}},
		{"undefined", "notexist", nil},
		{"undefined nested", "nested.notexist", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exec.lookupVariable(tt.key, rctx)
			if tt.want == nil && got != nil {
				t.Errorf("expected nil, got %v", got)
			} else if tt.want != nil {
				switch w := tt.want.(type) {
				case string:
					if got != w {
						t.Errorf("expected %q, got %v", w, got)
					}
				case map[string]any:
					// Just check it's not nil for maps
					if got == nil {
						t.Error("expected map, got nil")
					}
				}
			}
		})
	}
}

func TestApplyFilter(t *testing.T) {
	exec := New()
	rctx := &RunContext{
		Vars: map[string]any{
			"name":      "Hello World",
			"empty":     "",
			"items":     []any{"a", "b", "c"},
			"number":    "42",
			"trimmed":   "  spaces  ",
			"undefined": nil,
			"file":      "/outbox/2024/report.csv",
		},
	}

	tests := []struct {
		name    string
		varName string
		filter  string
		want    any
	}{
		{"default with value", "name", "default('fallback')", "Hello World"},
		{"default with empty", "empty", "default('fallback')", "fallback"},
		{"default with undefined", "notexist", "default('fallback')", "fallback"},
		{"lower", "name", "lower", "hello world"},
		{"upper", "name", "upper", "HELLO WORLD"},
		{"trim", "trimmed", "trim", "spaces"},
		{"first", "items", "first", "a"},
		{"last", "items", "last", "c"},
		{"length string", "name", "length", 11},
		{"length array", "items", "length", 3},
		{"join default", "items", "join", "a,b,c"},
		{"join custom", "items", "join(' ')", "a b c"},
		{"basename", "file", "basename", "report.csv"},
		{"dirname", "file", "dirname", "/outbox/2024"},
		{"required with value", "name", "required", "Hello World"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := exec.applyFilter(tt.varName, tt.filter, rctx)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestApplyFilterUnknown(t *testing.T) {
	exec := New()
	rctx := &RunContext{
		Vars:       map[string]any{"x": "test"},
	}

	_, err := exec.applyFilter("x", "unknownfilter", rctx)
	if err == nil {
		t.Error("expected error for unknown filter")
	}
}

func TestInterpolateParams(t *testing.T) {
	exec := New()
	rctx := &RunContext{
		Vars: map[string]any{
			"host":   "sftp.example.com",
			"outbox": "/var/outbox",
		},
	}

	params := map[string]any{
		"server":  "{{ host }}",
		"path":    "{{ outbox }}/daily",
		"timeout": 5,
	}

	result, err := exec.interpolateParams(params, rctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result["server"] != "sftp.example.com" {
		t.Errorf("server: expected 'sftp.example.com', got %v", result["server"])
	}
	if result["path"] != "/var/outbox/daily" {
		t.Errorf("path: expected '/var/outbox/daily', got %v", result["path"])
	}
	if result["timeout"] != 5 {
		t.Errorf("timeout: expected 5, got %v", result["timeout"])
	}
}

func TestInterpolateNestedParams(t *testing.T) {
	exec := New()
	rctx := &RunContext{
		Vars: map[string]any{
			"user": "admin",
		},
	}

	params := map[string]any{
		"config": map[string]any{
			"owner": "{{ user }}",
			"mode":  "0644",
		},
		"items": []any{"{{ user }}", "guest"},
	}

	result, err := exec.interpolateParams(params, rctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	config := result["config"].(map[string]any)
	if config["owner"] != "admin" {
		t.Errorf("config.owner: expected 'admin', got %v", config["owner"])
	}

	items := result["items"].([]any)
	if items[0] != "admin" {
		t.Errorf("items[0]: expected 'admin', got %v", items[0])
	}
}

func TestRequiredFilter(t *testing.T) {
	exec := New()
	rctx := &RunContext{
		Vars: map[string]any{"env": map[string]string{}},
	}

	_, err := exec.interpolateString("{{ env.SFTP_PASSWORD | required }}", rctx)
	if err == nil {
		t.Fatal("expected error for missing required variable")
	}
	if !strings.Contains(err.Error(), "env.SFTP_PASSWORD") {
		t.Errorf("error should name the variable: %v", err)
	}

	_, err = exec.interpolateString("pass={{ env.SFTP_PASSWORD | required('set SFTP_PASSWORD') }}", rctx)
	if err == nil || err.Error() != "set SFTP_PASSWORD" {
		t.Errorf("expected custom message, got %v", err)
	}

	_, err = exec.interpolateParams(map[string]any{"password": "{{ env.SFTP_PASSWORD | required }}"}, rctx)
	if err == nil || !strings.Contains(err.Error(), "parameter 'password'") {
		t.Errorf("expected parameter name in error, got %v", err)
	}
}

func TestFilterChain(t *testing.T) {
	exec := New()
	rctx := &RunContext{
		Vars: map[string]any{"file": "/outbox/2024/Report.CSV "},
	}

	got, err := exec.interpolateString("{{ file | trim | basename | lower }}", rctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "report.csv" {
		t.Errorf("expected 'report.csv', got %v", got)
	}

	if _, err := exec.interpolateString("{{ file | trim | bogus }}", rctx); err == nil {
		t.Error("expected error for unknown filter in chain")
	}
}

func TestLookupRunState(t *testing.T) {
	exec := New()

	fetched := task.New(2, "Fetch", "/tmp/run", nil)
	fetched.AddFile(record.New("/tmp/run/a.csv", 2))
	fetched.AddFile(record.New("/tmp/run/b.csv", 2))

	rctx := &RunContext{
		Workflow:   &workflow.Workflow{Name: "nightly", ID: 7},
		Vars:       map[string]any{},
		Tasks:      map[int]*task.Task{2: fetched},
		TempFolder: "/tmp/run",
	}

	tests := []struct {
		input string
		want  any
	}{
		{"{{ workflow.name }}", "nightly"},
		{"{{ workflow.id }}", 7},
		{"{{ workflow.temp_folder }}", "/tmp/run"},
		{"{{ tasks.2.count }}", 2},
		{"{{ tasks.2.name }}", "Fetch"},
		{"{{ tasks.2.files | first | basename }}", "a.csv"},
		{"{{ tasks.2.files | join(';') }}", "/tmp/run/a.csv;/tmp/run/b.csv"},
		{"{{ tasks.9.count }}", nil},
		{"{{ tasks.x.files }}", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := exec.interpolateString(tt.input, rctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v (%T), got %v (%T)", tt.want, tt.want, got, got)
			}
		})
	}
}

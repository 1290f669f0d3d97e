package model

import (
	"encoding/json"
	"testing"
)

func TestJSONBValueAndScan(t *testing.T) {
	original := JSONB{"recipients": []interface{}{"ops@example.ca"}, "limit": 25}

	value, err := original.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	data, ok := value.([]byte)
	if !ok {
		t.Fatalf("expected []byte value, got %T", value)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal value error: %v", err)
	}

	if _, ok := decoded["recipients"]; !ok {
		t.Fatalf("expected recipients key, got %v", decoded)
	}

	var scanned JSONB
	if err := scanned.Scan(data); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	if scanned["limit"] != float64(25) {
		t.Fatalf("expected scanned limit 25, got %v", scanned["limit"])
	}
}

func TestSchedulable(t *testing.T) {
	cases := []struct {
		name     string
		workflow Workflow
		want     bool
	}{
		{"active with schedule", Workflow{Status: WorkflowActive, Schedule: "*/5 * * * *"}, true},
		{"active without schedule", Workflow{Status: WorkflowActive}, false},
		{"paused with schedule", Workflow{Status: WorkflowPaused, Schedule: "*/5 * * * *"}, false},
		{"deleted with schedule", Workflow{Status: WorkflowDeleted, Schedule: "*/5 * * * *"}, false},
	}

	for _, tc := range cases {
		if got := tc.workflow.Schedulable(); got != tc.want {
			t.Fatalf("%s: Schedulable() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestExecutionTerminal(t *testing.T) {
	for _, status := range []ExecutionStatus{ExecutionSucceeded, ExecutionFailed, ExecutionSkipped} {
		e := Execution{Status: status}
		if !e.Terminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	for _, status := range []ExecutionStatus{ExecutionPending, ExecutionRunning} {
		e := Execution{Status: status}
		if e.Terminal() {
			t.Fatalf("expected %s to not be terminal", status)
		}
	}
}

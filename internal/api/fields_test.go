package api

import (
	"testing"

	"gorm.io/datatypes"
)

func TestFilterFields_DropsUnknownKeys(t *testing.T) {
	body := map[string]any{
		"name":      "updated",
		"workspace": "attacker-supplied",
		"id":        "attacker-supplied",
	}
	fields := FilterFields(body, map[string]string{"name": "name", "status": "status"})

	if len(fields) != 1 {
		t.Fatalf("expected only whitelisted keys, got %v", fields)
	}
	if fields["name"] != "updated" {
		t.Fatalf("name not mapped: %v", fields)
	}
}

func TestFilterFields_SkipsAbsentKeys(t *testing.T) {
	fields := FilterFields(map[string]any{"status": "paused"}, map[string]string{
		"name":   "name",
		"status": "status",
	})
	if _, present := fields["name"]; present {
		t.Fatalf("absent body key must stay absent from the update: %v", fields)
	}
	if fields["status"] != "paused" {
		t.Fatalf("status not mapped: %v", fields)
	}
}

func TestFilterFields_EncodesNestedValuesAsJSON(t *testing.T) {
	body := map[string]any{
		"config": map[string]any{"region": "us-east-1"},
		"events": []any{"order.created", "order.paid"},
	}
	fields := FilterFields(body, map[string]string{"config": "config", "events": "events"})

	cfg, ok := fields["config"].(datatypes.JSON)
	if !ok {
		t.Fatalf("expected config encoded as JSON blob, got %T", fields["config"])
	}
	if string(cfg) != `{"region":"us-east-1"}` {
		t.Fatalf("unexpected config encoding %s", cfg)
	}
	if _, ok := fields["events"].(datatypes.JSON); !ok {
		t.Fatalf("expected events encoded as JSON blob, got %T", fields["events"])
	}
}

func TestFilterFields_RenamesColumns(t *testing.T) {
	fields := FilterFields(map[string]any{"taskType": "report"}, map[string]string{
		"taskType": "task_type",
	})
	if fields["task_type"] != "report" {
		t.Fatalf("column rename not applied: %v", fields)
	}
}

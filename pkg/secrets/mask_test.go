package secrets

import (
	"strings"
	"testing"
)

func TestMaskValuesMasksSecretFields(t *testing.T) {
	masked := MaskValues(map[string]string{
		"username": "ci-bot",
		"password": "supersecretvalue",
	})
	if masked["username"] != "ci-bot" {
		t.Fatalf("expected username to pass through, got %s", masked["username"])
	}
	if strings.Contains(masked["password"], "supersecretvalue") {
		t.Fatalf("expected password to be masked, got %s", masked["password"])
	}
}

func TestMaskValuesEmptyInput(t *testing.T) {
	if out := MaskValues(nil); out != nil {
		t.Fatalf("expected nil output for nil input, got %v", out)
	}
	if Mask("") != "" {
		t.Fatalf("expected empty mask for empty value")
	}
}

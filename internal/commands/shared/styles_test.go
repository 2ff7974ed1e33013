package shared

import (
	"strings"
	"testing"
)

func TestRenderOK(t *testing.T) {
	got := RenderOK("workflow is valid")
	if !strings.Contains(got, SymbolOK) {
		t.Errorf("RenderOK() = %q, missing %q", got, SymbolOK)
	}
	if !strings.Contains(got, "workflow is valid") {
		t.Errorf("RenderOK() = %q, missing message", got)
	}
}

func TestRenderError(t *testing.T) {
	got := RenderError("Error: 1 of 2 steps failed")
	if !strings.Contains(got, SymbolError) {
		t.Errorf("RenderError() = %q, missing %q", got, SymbolError)
	}
	if !strings.Contains(got, "1 of 2 steps failed") {
		t.Errorf("RenderError() = %q, missing message", got)
	}
}

func TestRenderLabel(t *testing.T) {
	got := RenderLabel("agents:")
	if !strings.Contains(got, "agents:") {
		t.Errorf("RenderLabel() = %q, missing label", got)
	}
}

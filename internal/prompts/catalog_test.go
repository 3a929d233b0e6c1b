package prompts_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelforge/internal/prompts"
)

func TestBuiltinMatchesInOrder(t *testing.T) {
	catalog := prompts.Builtin()
	tests := []struct {
		text    string
		keyword string
	}{
		{"别再把自己当软柿子捏。", "软柿子"},
		{"学着用狠角色的路子火。", "狠角色"},
		{"听好了，", "听好了"},
		{"火", "火"},
		{"从今儿起，", ""},
	}
	for _, tt := range tests {
		prompt, keyword := catalog.Match(tt.text)
		if keyword != tt.keyword {
			t.Fatalf("Match(%q) keyword = %q, want %q", tt.text, keyword, tt.keyword)
		}
		if prompt == "" {
			t.Fatalf("Match(%q) returned empty prompt", tt.text)
		}
	}
	if got := catalog.PromptFor("从今儿起，"); got != catalog.Default {
		t.Fatalf("expected default prompt, got %q", got)
	}
}

func TestPromptForIsDeterministic(t *testing.T) {
	catalog := prompts.Builtin()
	first := catalog.PromptFor("狠角色")
	for i := 0; i < 10; i++ {
		if catalog.PromptFor("狠角色") != first {
			t.Fatal("prompt changed between calls")
		}
	}
}

func TestLoadYAMLCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `rules:
  - keyword: rocket
    prompt: a cartoon cat riding a rocket
  - keyword: rain
    prompt: a cartoon cat under an umbrella
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	catalog, err := prompts.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := catalog.PromptFor("into the rain"); got != "a cartoon cat under an umbrella" {
		t.Fatalf("unexpected prompt %q", got)
	}
	if catalog.Default != prompts.Builtin().Default {
		t.Fatal("expected built-in default prompt to be inherited")
	}
}

func TestLoadRejectsInvalidRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte("rules:\n  - keyword: \"\"\n    prompt: x\n"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := prompts.Load(path); err == nil || !strings.Contains(err.Error(), "keyword is required") {
		t.Fatalf("expected keyword validation error, got %v", err)
	}
}

func TestLoadEmptyPathUsesBuiltin(t *testing.T) {
	catalog, err := prompts.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(catalog.Rules) != len(prompts.Builtin().Rules) {
		t.Fatalf("unexpected rule count %d", len(catalog.Rules))
	}
}

func TestMarshalRoundTripsThroughLoad(t *testing.T) {
	data, err := prompts.Builtin().Marshal()
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "export.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	catalog, err := prompts.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if catalog.PromptFor("软柿子") != prompts.Builtin().PromptFor("软柿子") {
		t.Fatal("exported catalog does not match built-in")
	}
}

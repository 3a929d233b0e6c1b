// Package prompts maps subtitle text to image-generation prompts through an
// ordered keyword catalog.
package prompts

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule maps a keyword to the prompt used when the keyword appears in the text.
type Rule struct {
	Keyword string `yaml:"keyword" json:"keyword"`
	Prompt  string `yaml:"prompt" json:"prompt"`
}

// Catalog is an ordered rule list plus the prompt used when nothing matches.
// The first matching rule wins, so more specific keywords belong first.
type Catalog struct {
	Rules   []Rule `yaml:"rules" json:"rules"`
	Default string `yaml:"default" json:"default"`
}

const promptSuffix = "纯色背景或无背景，卡通风格，简洁线条"

// Builtin returns the catalog shipped with reelforge.
func Builtin() Catalog {
	return Catalog{
		Rules: []Rule{
			{Keyword: "软柿子", Prompt: "一个简洁的卡通风格插画，一只可爱的白色猫咪角色，手持大锤对着柿子，" + promptSuffix},
			{Keyword: "狠角色", Prompt: "一个简洁的卡通风格插画，一只可爱的白色猫咪角色，手持青色步枪，" + promptSuffix},
			{Keyword: "听好了", Prompt: "一个简洁的卡通风格插画，一只可爱的白色猫咪角色，举手做停止手势，" + promptSuffix},
			{Keyword: "火", Prompt: "一个简洁的卡通风格插画，一只可爱的白色猫咪角色，周围有火焰元素，" + promptSuffix},
		},
		Default: "一个简洁的卡通风格插画，一只可爱的白色猫咪角色，表情生动，" + promptSuffix,
	}
}

// Load reads a YAML catalog. An empty path returns the built-in catalog; a
// file without a default prompt inherits the built-in one.
func Load(path string) (Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Builtin(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read prompt catalog: %w", err)
	}
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parse prompt catalog %s: %w", path, err)
	}
	if strings.TrimSpace(catalog.Default) == "" {
		catalog.Default = Builtin().Default
	}
	if err := catalog.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("prompt catalog %s: %w", path, err)
	}
	return catalog, nil
}

// Validate rejects rules that could never match or would send an empty prompt.
func (c Catalog) Validate() error {
	if strings.TrimSpace(c.Default) == "" {
		return errors.New("default prompt is required")
	}
	for i, rule := range c.Rules {
		if strings.TrimSpace(rule.Keyword) == "" {
			return fmt.Errorf("rule %d: keyword is required", i)
		}
		if strings.TrimSpace(rule.Prompt) == "" {
			return fmt.Errorf("rule %d (%s): prompt is required", i, rule.Keyword)
		}
	}
	return nil
}

// PromptFor returns the prompt for text. The result depends only on text and
// the catalog contents.
func (c Catalog) PromptFor(text string) string {
	prompt, _ := c.Match(text)
	return prompt
}

// Match is PromptFor that also reports the matched keyword ("" for default).
func (c Catalog) Match(text string) (prompt, keyword string) {
	for _, rule := range c.Rules {
		if strings.Contains(text, rule.Keyword) {
			return rule.Prompt, rule.Keyword
		}
	}
	return c.Default, ""
}

// Marshal renders the catalog as YAML, used by "reelforge prompts export".
func (c Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

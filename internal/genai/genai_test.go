package genai

import (
	"testing"
	"time"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error when no API key is configured")
	}
}

func TestNewClientOptions(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", c.model)
	}
	if c.timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", c.timeout)
	}
	if c.maxTokens != DefaultMaxTokens {
		t.Errorf("expected default max tokens, got %d", c.maxTokens)
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	c, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient failed with env key: %v", err)
	}
	if c.model != DefaultModel {
		t.Errorf("expected default model, got %s", c.model)
	}
}

package ollama

import "testing"

func TestNormalizeModelID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain name", "mistral", "mistral"},
		{"tag stripped", "llama3.1:8b-instruct-q4", "llama3.1"},
		{"latest tag", "qwen2.5-coder:latest", "qwen2.5-coder"},
		{"uppercase lowered", "Mistral:Latest", "mistral"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeModelID(tt.in); got != tt.want {
				t.Errorf("NormalizeModelID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestModelSupportsToolCalling(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"llama3.1:latest", true},
		{"llama3.2:3b", true},
		{"qwen2.5-coder:7b", true},
		{"mistral-nemo", true},
		{"command-r:35b", true},
		// llama3.2 must not fall through to the llama3 entry
		{"llama3:latest", false},
		{"llama3-gradient", false},
		{"deepseek-coder-v2", false},
		{"phi3:mini", false},
		{"gemma2:9b", false},
		{"unknown-model", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := ModelSupportsToolCalling(tt.model); got != tt.want {
				t.Errorf("ModelSupportsToolCalling(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestClientSupportsToolCalling(t *testing.T) {
	c, err := NewClient("http://localhost:11434", "llama3.1:latest")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if !c.SupportsToolCalling() {
		t.Error("SupportsToolCalling() = false for llama3.1")
	}
	c.SetModel("gemma2:9b")
	if c.SupportsToolCalling() {
		t.Error("SupportsToolCalling() = true for gemma2")
	}
}

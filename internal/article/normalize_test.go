package article

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "already normalized",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:     "uppercase",
			input:    "Hello World",
			expected: "hello world",
		},
		{
			name:     "leading and trailing whitespace",
			input:    "  Hello World  ",
			expected: "hello world",
		},
		{
			name:     "internal whitespace collapsed",
			input:    "Hello\t\t World\n Again",
			expected: "hello world again",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "only whitespace",
			input:    "   \t\n  ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCountChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{
			name:     "ascii",
			input:    "hello",
			expected: 5,
		},
		{
			name:     "empty",
			input:    "",
			expected: 0,
		},
		{
			name:     "multi-byte runes",
			input:    "héllo wörld",
			expected: 11,
		},
		{
			name:     "cjk",
			input:    "发布文章",
			expected: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CountChars(tt.input)
			if got != tt.expected {
				t.Errorf("CountChars(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

package http

import (
	"testing"
)

func Test_parseWeeksBack(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		wantErr  bool
	}{
		{
			name:     "Empty input falls back to default",
			input:    "",
			expected: 4,
		},
		{
			name:     "Explicit value",
			input:    "12",
			expected: 12,
		},
		{
			name:     "Zero allowed",
			input:    "0",
			expected: 0,
		},
		{
			name:    "Negative rejected",
			input:   "-1",
			wantErr: true,
		},
		{
			name:    "Non-numeric rejected",
			input:   "abc",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseWeeksBack(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got %d", tt.input, result)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error for %q: %v", tt.input, err)
				return
			}
			if result != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func Test_parseDays(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []int
		wantErr  bool
	}{
		{
			name:     "Empty input falls back to defaults",
			input:    "",
			expected: []int{1, 7, 30, 60},
		},
		{
			name:     "Explicit csv",
			input:    "1,7,30",
			expected: []int{1, 7, 30},
		},
		{
			name:     "Whitespace tolerated",
			input:    " 7 , 14 ",
			expected: []int{7, 14},
		},
		{
			name:    "Zero rejected",
			input:   "0,7",
			wantErr: true,
		},
		{
			name:    "Non-numeric rejected",
			input:   "7,week",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseDays(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got %v", tt.input, result)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error for %q: %v", tt.input, err)
				return
			}
			if len(result) != len(tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, result)
				return
			}
			for i, d := range result {
				if d != tt.expected[i] {
					t.Errorf("Expected %v, got %v", tt.expected, result)
					return
				}
			}
		})
	}
}

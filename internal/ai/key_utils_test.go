package ai

import "testing"

func TestNormalizeAPIKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "trims quotes and bearer prefix",
			in:   `"Bearer aa-abc123"`,
			want: "aa-abc123",
		},
		{
			name: "single quotes around gemini key",
			in:   `'AIzaSyExample'`,
			want: "AIzaSyExample",
		},
		{
			name: "strips escaped and real control characters",
			in:   "aa-abc\\n123\r\n\t",
			want: "aa-abc123",
		},
		{
			name: "strips hidden unicode characters",
			in:   "gsk_\u200bgroq\ufeff123",
			want: "gsk_groq123",
		},
		{
			name: "empty input",
			in:   "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := normalizeAPIKey(tc.in)
			if got != tc.want {
				t.Fatalf("normalizeAPIKey(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

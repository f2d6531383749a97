package text

import (
	"slices"
	"testing"
)

func TestNormalizeTerms_Basic(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{
			input: "Hello World",
			want:  []string{"hello", "world"},
		},
		{
			input: "The consumer is configured",
			want:  []string{"consumer", "configured"},
		},
		{
			input: "parseHTTPRequest(raw_body)",
			want:  []string{"parse", "http", "request", "raw", "body"},
		},
		{
			input: "def load_config(self):",
			want:  []string{"load", "config"},
		},
		{
			input: "a b c", // Single chars filtered
			want:  []string{},
		},
		{
			input: "",
			want:  []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got := NormalizeTerms(tc.input)
			if !slices.Equal(got, tc.want) {
				t.Errorf("NormalizeTerms(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizeTerms_FiltersStopwords(t *testing.T) {
	got := NormalizeTerms("if the value is nil then return the default")

	for _, term := range got {
		if IsStopword(term) {
			t.Errorf("stopword %q should have been filtered", term)
		}
	}
	want := []string{"value", "then", "default"}
	if !slices.Equal(got, want) {
		t.Errorf("NormalizeTerms() = %v, want %v", got, want)
	}
}

func TestSplitCamel(t *testing.T) {
	tests := map[string][]string{
		"fooBar":      {"foo", "Bar"},
		"HTTPServer":  {"HTTP", "Server"},
		"getV2Client": {"get", "V2", "Client"},
		"lower":       {"lower"},
		"":            nil,
	}

	for input, want := range tests {
		if got := splitCamel(input); !slices.Equal(got, want) {
			t.Errorf("splitCamel(%q) = %v, want %v", input, got, want)
		}
	}
}

package pubmed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"plain words", "lung cancer treatment", "lung+AND+cancer+AND+treatment"},
		{"short tokens dropped", "effects of an MRI on kids", "effects+AND+MRI+AND+kids"},
		{"punctuation stripped", "COVID-19: long-term, outcomes?", "COVID19+AND+longterm+AND+outcomes"},
		{"order and duplicates kept", "gene therapy gene", "gene+AND+therapy+AND+gene"},
		{"whitespace runs", "  heart \t\n failure  ", "heart+AND+failure"},
		{"underscore is a word char", "snake_case ok", "snake_case"},
		{"non ascii letters stripped", "café naïve", "caf+AND+nave"},
		{"nothing usable", "a an to", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Convert(tt.query))
		})
	}
}

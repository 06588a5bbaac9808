// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "ab", 1},
		{"ab", "abc", 1},
		{"abc", "bac", 2},
		{"kitten", "sitting", 3},
		{"invoke", "invoek", 2},
		{"listen", "lisen", 1},
	}
	for _, test := range tests {
		t.Run(test.a+"->"+test.b, func(t *testing.T) {
			if got := levenshtein(test.a, test.b); got != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
			}
			if got := levenshtein(test.b, test.a); got != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.b, test.a, got, test.want)
			}
		})
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []*Command{
		{Name: "invoke"},
		{Name: "listen"},
		{Name: "send"},
		{Name: "decode"},
		{Name: "serve"},
	}
	tests := []struct {
		input string
		want  string
	}{
		{"invkoe", "invoke"},
		{"decod", "decode"},
		{"sned", "send"},
		{"zzzzzzzzz", ""},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			if got := suggestCommand(test.input, commands); got != test.want {
				t.Errorf("suggestCommand(%q) = %q, want %q", test.input, got, test.want)
			}
		})
	}
}

func TestSuggestFlag(t *testing.T) {
	newFlagSet := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("invoke", pflag.ContinueOnError)
		flagSet.String("channel", "", "")
		flagSet.String("method", "", "")
		flagSet.StringP("socket", "s", "", "")
		return flagSet
	}
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"long typo", []string{"--chanel", "x"}, "--channel"},
		{"with value", []string{"--metod=echo"}, "--method"},
		{"skips defined flags", []string{"--channel", "x", "--sockt", "y"}, "--socket"},
		{"defined shorthand", []string{"-s", "path"}, ""},
		{"distant", []string{"--zzzzzzzz"}, ""},
		{"after terminator", []string{"--", "--chanel"}, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := suggestFlag(test.args, newFlagSet()); got != test.want {
				t.Errorf("suggestFlag(%v) = %q, want %q", test.args, got, test.want)
			}
		})
	}
}

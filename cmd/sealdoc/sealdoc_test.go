package main

import (
	"strings"
	"testing"
)

func Test_flagInArgs(t *testing.T) {
	testCases := []struct {
		name       string
		args       string
		longName   string
		shortNames string
		expect     bool
	}{
		{name: "long flag", args: "--encrypt store.db", longName: "encrypt", shortNames: "e", expect: true},
		{name: "negated long flag", args: "--no-encrypt store.db", longName: "encrypt", shortNames: "e", expect: true},
		{name: "long flag with value", args: "--mode=r store.db", longName: "mode", shortNames: "m", expect: true},
		{name: "long flag prefix is not a match", args: "--encrypted store.db", longName: "encrypt", shortNames: "e", expect: false},
		{name: "short flag", args: "-e store.db", longName: "encrypt", shortNames: "e", expect: true},
		{name: "short flag in bundle", args: "-qe store.db", longName: "encrypt", shortNames: "e", expect: true},
		{name: "short flag before value flag", args: "-em r store.db", longName: "encrypt", shortNames: "e", expect: true},
		{name: "value flag at end of bundle", args: "-em r store.db", longName: "mode", shortNames: "m", expect: true},
		{name: "attached value is not a flag", args: "-mr store.db", longName: "encrypt", shortNames: "e", expect: false},
		{name: "attached value is not a bundle", args: "-mr+ store.db", longName: "compress", shortNames: "z", expect: false},
		{name: "separate value is not a flag", args: "-k -z store.db", longName: "compress", shortNames: "z", expect: false},
		{name: "long separate value is not a flag", args: "--key-file -e store.db", longName: "encrypt", shortNames: "e", expect: false},
		{name: "flag after value is found", args: "-k key.txt -z store.db", longName: "compress", shortNames: "z", expect: true},
		{name: "command text is not a flag", args: "-C -ze store.db", longName: "encrypt", shortNames: "e", expect: false},
		{name: "stops at double dash", args: "store.db -- -e", longName: "encrypt", shortNames: "e", expect: false},
		{name: "long-only flag", args: "--create-dirs store.db", longName: "create-dirs", shortNames: "", expect: true},
		{name: "not given", args: "store.db", longName: "encrypt", shortNames: "e", expect: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual := flagInArgs(strings.Fields(tc.args), tc.longName, tc.shortNames)
			if actual != tc.expect {
				t.Fatalf("expected %t but got %t", tc.expect, actual)
			}
		})
	}
}

package main

import "testing"

func TestAPIBaseURL(t *testing.T) {
	cases := []struct {
		bind string
		want string
	}{
		{"127.0.0.1:7788", "http://127.0.0.1:7788"},
		{"0.0.0.0:7788", "http://127.0.0.1:7788"},
		{"::", "http://::"},
		{"[::]:7788", "http://127.0.0.1:7788"},
		{"badger.local:9000", "http://badger.local:9000"},
	}
	for _, tc := range cases {
		if got := apiBaseURL(tc.bind); got != tc.want {
			t.Fatalf("apiBaseURL(%q) = %q, want %q", tc.bind, got, tc.want)
		}
	}
}

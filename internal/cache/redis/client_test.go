package redis

import (
	"strings"
	"testing"
)

func TestKeyNamespacing(t *testing.T) {
	cases := map[string]struct {
		prefix string
		parts  []string
		want   string
	}{
		"no prefix":   {parts: []string{"listing", "42"}, want: "listing:42"},
		"prefix":      {prefix: "mart:", parts: []string{"lock", "listing:42"}, want: "mart:lock:listing:42"},
		"single part": {prefix: "mart:", parts: []string{"listings"}, want: "mart:listings"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := &Client{prefix: tc.prefix}
			if got := c.Key(tc.parts...); got != tc.want {
				t.Errorf("Key = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHasPattern(t *testing.T) {
	if hasPattern("listings") {
		t.Error("plain channel treated as pattern")
	}
	if !hasPattern("listings:*") {
		t.Error("glob channel not treated as pattern")
	}
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	for _, cmd := range []string{"ZREMRANGEBYSCORE", "ZCARD", "ZADD", "PEXPIRE"} {
		if !strings.Contains(slidingWindowLua, cmd) {
			t.Errorf("sliding window script missing %s", cmd)
		}
	}
}

func TestListingSetScriptEmbedded(t *testing.T) {
	for _, part := range []string{"cjson.decode", "'version'", ">= tonumber(ARGV[1])", "'PX'"} {
		if !strings.Contains(listingSetLua, part) {
			t.Errorf("listing set script missing %s", part)
		}
	}
}

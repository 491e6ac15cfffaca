package credential

import (
	"testing"
	"time"
)

func TestTokenValidAtStrictInequality(t *testing.T) {
	now := time.Now()
	minTTL := 5 * time.Minute

	cases := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"well within ttl", now.Add(10 * time.Minute), true},
		{"exactly at threshold is invalid", now.Add(minTTL), false},
		{"past the threshold", now.Add(4 * time.Minute), false},
		{"already expired", now.Add(-time.Minute), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok := Token{Value: "x", ExpiresAt: tc.expiresAt}
			if got := tok.validAt(now, minTTL); got != tc.want {
				t.Errorf("validAt() = %v, want %v", got, tc.want)
			}
		})
	}
}

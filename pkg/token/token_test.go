package token

import (
	"strings"
	"testing"
)

func TestIssue(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		tok, err := Issue()
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		if !strings.HasPrefix(tok, Prefix) {
			t.Errorf("Issue() = %q, missing prefix", tok)
		}
		if len(tok) != MinLength {
			t.Errorf("Issue() length = %d, want %d", len(tok), MinLength)
		}
		if err := CheckFormat(tok); err != nil {
			t.Errorf("CheckFormat(issued) = %v", err)
		}
		if seen[tok] {
			t.Errorf("Issue() produced duplicate token")
		}
		seen[tok] = true
	}
}

func TestDigestAndMatches(t *testing.T) {
	const secret = "a-server-secret-that-is-long-enough-123"
	tok, err := Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	digest := Digest(tok, secret)
	if len(digest) != 64 {
		t.Fatalf("Digest() length = %d, want 64", len(digest))
	}
	if Digest(tok, secret) != digest {
		t.Error("Digest() is not deterministic")
	}

	tests := []struct {
		name      string
		presented string
		secret    string
		want      bool
	}{
		{"correct token", tok, secret, true},
		{"wrong token", tok + "x", secret, false},
		{"wrong secret", tok, secret + "x", false},
		{"empty token", "", secret, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.presented, tt.secret, digest); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		name    string
		tok     string
		wantErr bool
	}{
		{"missing prefix", strings.Repeat("a", MinLength), true},
		{"too short", Prefix + "abc", true},
		{"valid", Prefix + strings.Repeat("a", 44), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFormat(tt.tok)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	if got := Redact(Prefix + "abcdefgh1234"); got != "opr_****1234" {
		t.Errorf("Redact() = %q", got)
	}
	if got := Redact("x"); got != "opr_****" {
		t.Errorf("Redact(short) = %q", got)
	}
}

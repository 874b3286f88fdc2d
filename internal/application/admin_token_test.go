package application

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestVerifyAdminToken(t *testing.T) {
	t.Parallel()

	bcryptHash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	argonHash, err := CreateArgon2idHash("s3cret", Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	if err != nil {
		t.Fatalf("argon2id: %v", err)
	}

	cases := []struct {
		name    string
		hash    string
		token   string
		wantErr error
	}{
		{name: "bcrypt match", hash: string(bcryptHash), token: "s3cret"},
		{name: "bcrypt mismatch", hash: string(bcryptHash), token: "wrong", wantErr: ErrUnauthorized},
		{name: "argon2id match", hash: argonHash, token: "s3cret"},
		{name: "argon2id mismatch", hash: argonHash, token: "wrong", wantErr: ErrUnauthorized},
		{name: "empty token", hash: string(bcryptHash), token: "", wantErr: ErrUnauthorized},
		{name: "empty hash", hash: "", token: "s3cret", wantErr: ErrUnauthorized},
		{name: "unknown format", hash: "plain-text", token: "s3cret", wantErr: ErrInvalidTokenHash},
		{name: "truncated argon2id", hash: "$argon2id$v=19$m=1024", token: "s3cret", wantErr: ErrInvalidTokenHash},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := VerifyAdminToken(tc.hash, tc.token)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestHashAdminTokenRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashAdminToken("rotate-me")
	if err != nil {
		t.Fatalf("HashAdminToken: %v", err)
	}
	if err := VerifyAdminToken(hash, "rotate-me"); err != nil {
		t.Fatalf("expected hash to verify, got %v", err)
	}
	if _, err := HashAdminToken("  "); err == nil {
		t.Fatalf("expected blank token to be rejected")
	}
}

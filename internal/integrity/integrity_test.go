package integrity_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilhq/veil/internal/integrity"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := integrity.NewVerifier("secret").WithClock(fixedClock(now))

	body := []byte("payload=%7B%22type%22%3A%22block_actions%22%7D")
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := v.Sign(ts, body)

	assert.NoError(t, v.Verify(ts, sig, body))
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := integrity.NewVerifier("secret").WithClock(fixedClock(now))

	body := []byte("payload=original")
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := v.Sign(ts, body)

	tampered := append([]byte{}, body...)
	tampered[0] ^= 1
	assert.ErrorIs(t, v.Verify(ts, sig, tampered), integrity.ErrBadSignature)
}

func TestVerifyReplayWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := integrity.NewVerifier("secret").WithClock(fixedClock(now))
	body := []byte("x")

	tests := []struct {
		name    string
		age     time.Duration
		wantErr error
	}{
		{"fresh", 0, nil},
		{"within window", 299 * time.Second, nil},
		{"at window edge", 300 * time.Second, nil},
		{"301 seconds old", 301 * time.Second, integrity.ErrStaleTimestamp},
		{"301 seconds in the future", -301 * time.Second, integrity.ErrStaleTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := strconv.FormatInt(now.Add(-tt.age).Unix(), 10)
			sig := v.Sign(ts, body)
			err := v.Verify(ts, sig, body)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestVerifyRejectsMissingHeaders(t *testing.T) {
	v := integrity.NewVerifier("secret")
	assert.ErrorIs(t, v.Verify("", "v0=abc", []byte("x")), integrity.ErrMissingSignature)
	assert.ErrorIs(t, v.Verify("1700000000", "", []byte("x")), integrity.ErrMissingSignature)
	assert.ErrorIs(t, v.Verify("not-a-number", "v0=abc", []byte("x")), integrity.ErrStaleTimestamp)
}

func TestNonceMintIsStablePerPath(t *testing.T) {
	s := integrity.NewNonceStore()

	a := s.Mint("/api/interaction_work")
	b := s.Mint("/api/interaction_work")
	assert.Equal(t, a, b)
	require.Len(t, a, 64)

	other := s.Mint("/api/events_work")
	assert.NotEqual(t, a, other)
}

func TestNonceVerify(t *testing.T) {
	s := integrity.NewNonceStore()
	n := s.Mint("/api/confess_work")

	assert.NoError(t, s.Verify("/api/confess_work", n))
	assert.ErrorIs(t, s.Verify("/api/confess_work", "forged"), integrity.ErrBadNonce)
	assert.ErrorIs(t, s.Verify("/api/confess_work", ""), integrity.ErrBadNonce)

	// A route that never minted rejects everything, including another
	// route's real nonce.
	assert.ErrorIs(t, s.Verify("/api/events_work", n), integrity.ErrBadNonce)
}

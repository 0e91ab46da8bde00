package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher([]byte("test-pepper"), bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Passw0rd1", false},
		{"unicode letters count", "Пароль12", false},
		{"too short", "Pa0rd", true},
		{"no upper", "passw0rd1", true},
		{"no lower", "PASSW0RD1", true},
		{"no digit", "Password", true},
		{"empty", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tc.password)
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrWeakPassword)
		})
	}
}

func TestValidatePasswordStrengthListsEveryFailure(t *testing.T) {
	err := ValidatePasswordStrength("abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8 characters")
	assert.Contains(t, err.Error(), "an uppercase letter")
	assert.Contains(t, err.Error(), "a digit")
	assert.NotContains(t, err.Error(), "a lowercase letter")
}

func TestHasherRoundTrip(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("Passw0rd1")
	require.NoError(t, err)
	assert.NotContains(t, string(hash), "Passw0rd1")
	assert.True(t, h.Verify("Passw0rd1", hash))

	// any single-character mutation must fail
	pw := []rune("Passw0rd1")
	for i := range pw {
		mutated := append([]rune(nil), pw...)
		mutated[i]++
		assert.False(t, h.Verify(string(mutated), hash), "mutation at %d verified", i)
	}
	assert.False(t, h.Verify("Passw0rd", hash))
	assert.False(t, h.Verify("Passw0rd12", hash))
}

func TestHasherSalted(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("Passw0rd1")
	require.NoError(t, err)
	b, err := h.Hash("Passw0rd1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("Passw0rd1", a))
	assert.True(t, h.Verify("Passw0rd1", b))
}

func TestHasherBoundToPepper(t *testing.T) {
	h := newTestHasher(t)
	other, err := NewHasher([]byte("another-pepper"), bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := h.Hash("Passw0rd1")
	require.NoError(t, err)
	assert.False(t, other.Verify("Passw0rd1", hash))

	// a bare bcrypt of the plaintext is not accepted either
	plain, err := bcrypt.GenerateFromPassword([]byte("Passw0rd1"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.False(t, h.Verify("Passw0rd1", plain))
}

func TestHasherRejectsWeakPassword(t *testing.T) {
	h := newTestHasher(t)
	_, err := h.Hash("weak")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestHasherVerifyGarbageHash(t *testing.T) {
	h := newTestHasher(t)
	assert.False(t, h.Verify("Passw0rd1", []byte("not-a-bcrypt-hash")))
	assert.False(t, h.Verify("Passw0rd1", nil))
}

func TestNewHasherValidation(t *testing.T) {
	_, err := NewHasher(nil, bcrypt.MinCost)
	assert.Error(t, err)

	_, err = NewHasher([]byte("p"), bcrypt.MaxCost+1)
	assert.Error(t, err)

	h, err := NewHasher([]byte("p"), 0)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)
}

package statetoken_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/infrastructure/statetoken"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec := statetoken.New("test-secret", statetoken.DefaultTTL)

	in := statetoken.Payload{
		UserID:  "user-1",
		Nonce:   statetoken.NewNonce(),
		Context: "edit-flow",
		FlowID:  "42",
	}
	token, err := codec.Issue(in)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	out, ok := codec.Verify(token)
	require.True(t, ok)
	assert.Equal(t, in.UserID, out.UserID)
	assert.Equal(t, in.Nonce, out.Nonce)
	assert.Equal(t, in.Context, out.Context)
	assert.Equal(t, in.FlowID, out.FlowID)
	assert.NotZero(t, out.IssuedAt)
}

// Flipping any single bit of an issued token must make verification fail.
func TestCodec_SingleBitMutationInvalid(t *testing.T) {
	codec := statetoken.New("test-secret", statetoken.DefaultTTL)

	token, err := codec.Issue(statetoken.Payload{UserID: "user-1", Nonce: "n"})
	require.NoError(t, err)

	const b64url = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		for _, r := range []byte(b64url) {
			if r == token[i] {
				continue
			}
			mutated := token[:i] + string(r) + token[i+1:]
			_, ok := codec.Verify(mutated)
			assert.Falsef(t, ok, "mutation at offset %d accepted", i)
			break
		}
	}
}

func TestCodec_WrongSecretInvalid(t *testing.T) {
	token, err := statetoken.New("secret-a", statetoken.DefaultTTL).Issue(statetoken.Payload{UserID: "u", Nonce: "n"})
	require.NoError(t, err)

	_, ok := statetoken.New("secret-b", statetoken.DefaultTTL).Verify(token)
	assert.False(t, ok)
}

func TestCodec_ExpiredInvalid(t *testing.T) {
	codec := statetoken.New("test-secret", statetoken.DefaultTTL)

	token, err := codec.Issue(statetoken.Payload{
		UserID:   "user-1",
		Nonce:    "n",
		IssuedAt: time.Now().Add(-11 * time.Minute).UnixMilli(),
	})
	require.NoError(t, err)

	_, ok := codec.Verify(token)
	assert.False(t, ok)
}

func TestCodec_MalformedInvalid(t *testing.T) {
	codec := statetoken.New("test-secret", statetoken.DefaultTTL)

	for _, tok := range []string{"", ".", "abc", "abc.", ".def", "!!!.###", "a.b.c"} {
		_, ok := codec.Verify(tok)
		assert.Falsef(t, ok, "token %q accepted", tok)
	}
}

func TestSelectSecret_FallbackChain(t *testing.T) {
	assert.Equal(t, "prov", statetoken.SelectSecret("prov", "app"))
	assert.Equal(t, "app", statetoken.SelectSecret("", "app"))
	assert.Equal(t, "dev-secret", statetoken.SelectSecret("", ""))
}

func TestNewNonce_RandomAndURLSafe(t *testing.T) {
	a, b := statetoken.NewNonce(), statetoken.NewNonce()
	assert.NotEqual(t, a, b)
	assert.False(t, strings.ContainsAny(a, "+/="))
}

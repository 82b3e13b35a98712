package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec("test-master-secret")
	require.NoError(t, err)

	inputs := []string{
		"sk-local-123",
		"a",
		"credential with spaces and ünïcödé",
		strings.Repeat("x", 4096),
	}

	for _, in := range inputs {
		enc, err := codec.Encrypt(in)
		require.NoError(t, err)
		assert.NotEqual(t, in, enc)
		assert.Len(t, strings.Split(enc, ":"), 3)
		assert.True(t, IsEncrypted(enc))
		assert.Equal(t, in, codec.Decrypt(enc))
	}
}

func TestCodec_FreshIVPerEncryption(t *testing.T) {
	codec, err := NewCodec("test-master-secret")
	require.NoError(t, err)

	a, err := codec.Encrypt("same")
	require.NoError(t, err)
	b, err := codec.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCodec_DecryptLenient(t *testing.T) {
	codec, err := NewCodec("test-master-secret")
	require.NoError(t, err)

	t.Run("non-conforming input returned unchanged", func(t *testing.T) {
		for _, v := range []string{"plain-api-key", "a:b", "zz:yy:xx", "", "a:b:c:d"} {
			assert.Equal(t, v, codec.Decrypt(v))
		}
	})

	t.Run("foreign key returns stored value", func(t *testing.T) {
		other, err := NewCodec("another-secret")
		require.NoError(t, err)
		enc, err := other.Encrypt("hunter2")
		require.NoError(t, err)

		assert.Equal(t, enc, codec.Decrypt(enc))

		_, err = codec.DecryptStrict(enc)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("strict reports malformed input", func(t *testing.T) {
		_, err := codec.DecryptStrict("not-encrypted")
		assert.ErrorIs(t, err, ErrMalformedCiphertext)
	})
}

func TestCodec_KDF(t *testing.T) {
	sha, err := NewCodecWithKDF("secret", KDFSHA256)
	require.NoError(t, err)
	hk, err := NewCodecWithKDF("secret", KDFHKDF)
	require.NoError(t, err)

	enc, err := hk.Encrypt("value")
	require.NoError(t, err)
	assert.Equal(t, "value", hk.Decrypt(enc))

	_, err = sha.DecryptStrict(enc)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = NewCodecWithKDF("secret", KDF("scrypt"))
	assert.Error(t, err)
}

func TestNewCodec_EmptySecret(t *testing.T) {
	_, err := NewCodec("")
	assert.ErrorIs(t, err, ErrEmptyMasterSecret)
}

func TestHashPrompt(t *testing.T) {
	h := HashPrompt("explain ls -la")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashPrompt("explain ls -la"))
	assert.NotContains(t, h, "ls")
	assert.NotEqual(t, h, HashPrompt("explain ls -la "))

	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashPrompt("abc"))
}

func TestGenerateMasterSecret(t *testing.T) {
	s, err := GenerateMasterSecret()
	require.NoError(t, err)
	assert.Len(t, s, 64)

	_, err = NewCodec(s)
	assert.NoError(t, err)
}

package jwks

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestKey はテスト用のRSA鍵を生成する。
func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// TestKeyDescriptorRSAPublicKey は鍵記述子からRSA公開鍵への変換を検証する。
func TestKeyDescriptorRSAPublicKey(t *testing.T) {
	t.Parallel()

	key := newTestKey(t)

	t.Run("FromRSAPublicKeyで生成した記述子から元の公開鍵に戻せること", func(t *testing.T) {
		t.Parallel()

		desc := FromRSAPublicKey("kid-1", &key.PublicKey)
		assert.Equal(t, "RSA", desc.KeyType)
		assert.Equal(t, "sig", desc.Use)
		assert.Equal(t, "AQAB", desc.E)

		pub, err := desc.RSAPublicKey()
		require.NoError(t, err)
		assert.True(t, key.PublicKey.Equal(pub))
	})

	t.Run("RSA以外の鍵はエラーになること", func(t *testing.T) {
		t.Parallel()

		desc := FromRSAPublicKey("kid-ec", &key.PublicKey)
		desc.KeyType = "EC"
		_, err := desc.RSAPublicKey()
		assert.Error(t, err)
	})

	t.Run("パラメータが欠けている場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		desc := FromRSAPublicKey("kid-missing", &key.PublicKey)
		desc.N = ""
		_, err := desc.RSAPublicKey()
		assert.Error(t, err)
	})

	t.Run("base64urlとして不正な値はエラーになること", func(t *testing.T) {
		t.Parallel()

		desc := FromRSAPublicKey("kid-bad", &key.PublicKey)
		desc.N = "!!!"
		_, err := desc.RSAPublicKey()
		assert.Error(t, err)
	})

	t.Run("短すぎるモジュラスはエラーになること", func(t *testing.T) {
		t.Parallel()

		desc := FromRSAPublicKey("kid-short", &key.PublicKey)
		desc.N = base64.RawURLEncoding.EncodeToString([]byte{0x01, 0x02, 0x03})
		_, err := desc.RSAPublicKey()
		assert.Error(t, err)
	})

	t.Run("公開指数が1の場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		desc := FromRSAPublicKey("kid-e", &key.PublicKey)
		desc.E = base64.RawURLEncoding.EncodeToString([]byte{0x01})
		_, err := desc.RSAPublicKey()
		assert.Error(t, err)
	})
}

// TestKeySetLookup はkidによる鍵の検索を検証する。
func TestKeySetLookup(t *testing.T) {
	t.Parallel()

	set := KeySet{Keys: []KeyDescriptor{
		{KeyType: "RSA", KeyID: "a"},
		{KeyType: "RSA", KeyID: "b"},
	}}

	t.Run("一致するkidの鍵を返すこと", func(t *testing.T) {
		t.Parallel()

		k, ok := set.Lookup("b")
		require.True(t, ok)
		assert.Equal(t, "b", k.KeyID)
	})

	t.Run("一致しない場合はfalseを返すこと", func(t *testing.T) {
		t.Parallel()

		_, ok := set.Lookup("c")
		assert.False(t, ok)
	})

	t.Run("空のkidは一致しないこと", func(t *testing.T) {
		t.Parallel()

		_, ok := KeySet{Keys: []KeyDescriptor{{KeyID: ""}}}.Lookup("")
		assert.False(t, ok)
	})
}

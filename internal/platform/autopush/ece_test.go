package autopush

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encrypt produces an aes128gcm body for the receiver, split into records
// of rs bytes.
func encrypt(t *testing.T, receiver *ecdh.PublicKey, auth, plaintext []byte, rs int) []byte {
	t.Helper()

	sender, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	salt := make([]byte, saltLen)
	_, err = rand.Read(salt)
	require.NoError(t, err)

	cek, nonce, err := deriveContentKeys(sender, receiver, auth, salt, true)
	require.NoError(t, err)
	aead, err := newGCM(cek)
	require.NoError(t, err)

	senderPub := sender.PublicKey().Bytes()
	out := make([]byte, 0, headerLen+len(senderPub)+len(plaintext)+tagLen+1)
	out = append(out, salt...)
	out = binary.BigEndian.AppendUint32(out, uint32(rs))
	out = append(out, byte(len(senderPub)))
	out = append(out, senderPub...)

	chunk := rs - tagLen - 1
	for seq := uint64(0); ; seq++ {
		n := min(chunk, len(plaintext))
		rec := append([]byte{}, plaintext[:n]...)
		plaintext = plaintext[n:]
		if len(plaintext) == 0 {
			rec = append(rec, 2)
			out = aead.Seal(out, recordNonce(nonce, seq), rec, nil)
			return out
		}
		rec = append(rec, 1)
		out = aead.Seal(out, recordNonce(nonce, seq), rec, nil)
	}
}

func newKeys(t *testing.T) Keys {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return Keys{Private: priv, Auth: auth}
}

func TestDecrypt_RoundTrip(t *testing.T) {
	k := newKeys(t)
	msg := []byte(`{"title":"Alice","body":"salut"}`)

	got, err := Decrypt(k, encrypt(t, k.Private.PublicKey(), k.Auth, msg, 4096))
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDecrypt_MultipleRecords(t *testing.T) {
	k := newKeys(t)
	msg := []byte("When I grow up, I want to be a watermelon")

	got, err := Decrypt(k, encrypt(t, k.Private.PublicKey(), k.Auth, msg, 32))
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDecrypt_WrongAuth(t *testing.T) {
	k := newKeys(t)
	body := encrypt(t, k.Private.PublicKey(), k.Auth, []byte("hi"), 4096)

	k.Auth = make([]byte, 16)
	_, err := Decrypt(k, body)
	require.Error(t, err)
}

func TestDecrypt_Malformed(t *testing.T) {
	k := newKeys(t)

	_, err := Decrypt(k, []byte("short"))
	require.ErrorIs(t, err, ErrMalformed)

	body := encrypt(t, k.Private.PublicKey(), k.Auth, []byte("hi"), 4096)
	body[saltLen+4] = 10 // key id length no longer a P-256 point
	_, err = Decrypt(k, body)
	require.ErrorIs(t, err, ErrMalformed)

	tiny := encrypt(t, k.Private.PublicKey(), k.Auth, []byte("hi"), 4096)
	binary.BigEndian.PutUint32(tiny[saltLen:], 10)
	_, err = Decrypt(k, tiny)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestUnpad(t *testing.T) {
	data, last, err := unpad([]byte{'a', 'b', 2, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), data)
	assert.True(t, last)

	data, last, err = unpad([]byte{'a', 1})
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)
	assert.False(t, last)

	_, _, err = unpad([]byte{0, 0})
	require.ErrorIs(t, err, ErrMalformed)

	_, _, err = unpad([]byte{'a', 3})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestRecordNonce(t *testing.T) {
	base := make([]byte, nonceLen)
	base[nonceLen-1] = 0x0f

	assert.Equal(t, base, recordNonce(base, 0))
	n := recordNonce(base, 1)
	assert.Equal(t, byte(0x0e), n[nonceLen-1])
	assert.Equal(t, byte(0x0f), base[nonceLen-1], "base is not modified")
}

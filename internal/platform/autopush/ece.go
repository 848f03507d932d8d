package autopush

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	saltLen   = 16
	keyLen    = 16
	nonceLen  = 12
	tagLen    = 16
	headerLen = saltLen + 4 + 1
)

var (
	cekInfo     = []byte("Content-Encoding: aes128gcm\x00")
	nonceInfo   = []byte("Content-Encoding: nonce\x00")
	webPushInfo = []byte("WebPush: info\x00")
)

// ErrMalformed is returned for payloads that are not valid aes128gcm.
var ErrMalformed = errors.New("malformed push payload")

// Keys is the receiving half of a Web Push subscription.
type Keys struct {
	Private *ecdh.PrivateKey
	Auth    []byte
}

// Decrypt opens an aes128gcm message addressed to k.
func Decrypt(k Keys, body []byte) ([]byte, error) {
	if len(body) < headerLen {
		return nil, fmt.Errorf("%w: short header", ErrMalformed)
	}
	salt := body[:saltLen]
	rs := binary.BigEndian.Uint32(body[saltLen : saltLen+4])
	idLen := int(body[saltLen+4])
	if rs <= tagLen+1 {
		return nil, fmt.Errorf("%w: record size %d", ErrMalformed, rs)
	}
	if len(body) < headerLen+idLen {
		return nil, fmt.Errorf("%w: short key id", ErrMalformed)
	}
	senderRaw := body[headerLen : headerLen+idLen]
	records := body[headerLen+idLen:]

	sender, err := ecdh.P256().NewPublicKey(senderRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: sender key: %v", ErrMalformed, err)
	}

	cek, nonce, err := deriveContentKeys(k.Private, sender, k.Auth, salt, false)
	if err != nil {
		return nil, err
	}

	aead, err := newGCM(cek)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	for seq := uint64(0); len(records) > 0; seq++ {
		n := min(int(rs), len(records))
		rec := records[:n]
		records = records[n:]

		plain, err := aead.Open(nil, recordNonce(nonce, seq), rec, nil)
		if err != nil {
			return nil, fmt.Errorf("decrypt record %d: %w", seq, err)
		}

		data, last, err := unpad(plain)
		if err != nil {
			return nil, err
		}
		if last != (len(records) == 0) {
			return nil, fmt.Errorf("%w: record %d delimiter", ErrMalformed, seq)
		}
		out.Write(data)
	}
	return out.Bytes(), nil
}

// deriveContentKeys runs the RFC 8291 key schedule. local is the party
// holding a private key; sending reports whether local is the sender.
func deriveContentKeys(local *ecdh.PrivateKey, remote *ecdh.PublicKey, auth, salt []byte, sending bool) ([]byte, []byte, error) {
	secret, err := local.ECDH(remote)
	if err != nil {
		return nil, nil, fmt.Errorf("ecdh: %w", err)
	}

	uaPublic, asPublic := local.PublicKey().Bytes(), remote.Bytes()
	if sending {
		uaPublic, asPublic = asPublic, uaPublic
	}

	info := make([]byte, 0, len(webPushInfo)+len(uaPublic)+len(asPublic))
	info = append(info, webPushInfo...)
	info = append(info, uaPublic...)
	info = append(info, asPublic...)

	ikm, err := expand(secret, auth, info, 32)
	if err != nil {
		return nil, nil, err
	}
	cek, err := expand(ikm, salt, cekInfo, keyLen)
	if err != nil {
		return nil, nil, err
	}
	nonce, err := expand(ikm, salt, nonceInfo, nonceLen)
	if err != nil {
		return nil, nil, err
	}
	return cek, nonce, nil
}

func expand(secret, salt, info []byte, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), out); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	return cipher.NewGCM(block)
}

// recordNonce XORs the record sequence number into the low bytes of base.
func recordNonce(base []byte, seq uint64) []byte {
	n := make([]byte, nonceLen)
	copy(n, base)
	var s [8]byte
	binary.BigEndian.PutUint64(s[:], seq)
	for i := range s {
		n[nonceLen-8+i] ^= s[i]
	}
	return n
}

// unpad strips trailing zero padding and the delimiter. The delimiter is 2
// on the final record and 1 on every other.
func unpad(plain []byte) ([]byte, bool, error) {
	i := len(plain) - 1
	for i >= 0 && plain[i] == 0 {
		i--
	}
	if i < 0 {
		return nil, false, fmt.Errorf("%w: missing delimiter", ErrMalformed)
	}
	switch plain[i] {
	case 1:
		return plain[:i], false, nil
	case 2:
		return plain[:i], true, nil
	default:
		return nil, false, fmt.Errorf("%w: delimiter %#x", ErrMalformed, plain[i])
	}
}

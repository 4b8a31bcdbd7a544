package ethsig_test

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerolag/internal/ethsig"
)

func TestSignAndRecoverRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg := "Sign this message: " + strings.Repeat("ab", 32)
	sig, err := ethsig.SignPersonal(key, msg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig, "0x"))
	assert.Len(t, sig, 2+130)

	addr, err := ethsig.RecoverPersonal(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, ethsig.Address(key), addr)
}

func TestRecoverAcceptsRawRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := ethsig.SignPersonal(key, "hello")
	require.NoError(t, err)
	raw := []byte(sig)
	// Rewrite v from 27/28 to 0/1.
	last := sig[len(sig)-2:]
	switch last {
	case "1b":
		copy(raw[len(raw)-2:], "00")
	case "1c":
		copy(raw[len(raw)-2:], "01")
	default:
		t.Fatalf("unexpected v byte %s", last)
	}
	addr, err := ethsig.RecoverPersonal("hello", string(raw))
	require.NoError(t, err)
	assert.Equal(t, ethsig.Address(key), addr)
}

func TestRecoverDifferentMessageYieldsDifferentAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := ethsig.SignPersonal(key, "first")
	require.NoError(t, err)
	addr, err := ethsig.RecoverPersonal("second", sig)
	if err == nil {
		assert.NotEqual(t, ethsig.Address(key), addr)
	}
}

func TestRecoverRejectsMalformed(t *testing.T) {
	for _, sig := range []string{"", "0xzz", "0x1234"} {
		_, err := ethsig.RecoverPersonal("msg", sig)
		require.ErrorIs(t, err, ethsig.ErrMalformed, sig)
	}
}

func TestParseKeyWithPrefix(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = ethsig.ParseKey(ethsig.Address(key))
	require.Error(t, err, "an address is not a private key")

	parsed, err := ethsig.ParseKey("0x" + hex.EncodeToString(crypto.FromECDSA(key)))
	require.NoError(t, err)
	assert.Equal(t, ethsig.Address(key), ethsig.Address(parsed))
	assert.True(t, ethsig.IsAddress(ethsig.Address(key)))
	assert.False(t, ethsig.IsAddress("0x123"))
}

package crypto

import (
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

// Well-known development key (hardhat account #0).
const (
	devKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestEncryptDecryptKey(t *testing.T) {
	blob, err := EncryptKey(devKey, "hunter2")
	require.NoError(t, err)

	k, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, devKey[2:], k)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptKey_Rejects(t *testing.T) {
	_, err := EncryptKey(devKey, "")
	assert.Error(t, err)
	_, err = EncryptKey("0x1234", "pw")
	assert.Error(t, err)
}

func TestLoadSigner_RawKey(t *testing.T) {
	s, err := LoadSigner(KeyConfig{RawPrivateKey: devKey}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), s.Address())
}

func TestLoadSigner_EncryptedFile(t *testing.T) {
	blob, err := EncryptKey(devKey, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	s, err := LoadSigner(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), s.Address())
}

func TestWriteEncryptedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, WriteEncryptedKey(path, devKey, "pw"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	k, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, devKey[2:], k)

	assert.Error(t, WriteEncryptedKey(path, devKey, "pw"), "existing file must not be overwritten")
	assert.Error(t, WriteEncryptedKey(filepath.Join(t.TempDir(), "bad.json"), devKey, ""))
}

func TestLoadSigner_NothingConfigured(t *testing.T) {
	_, err := LoadSigner(KeyConfig{}, testLogger())
	assert.ErrorIs(t, err, domain.ErrNoSigner)
}

func TestSigner_SignTx(t *testing.T) {
	s, err := NewSigner(devKey)
	require.NoError(t, err)
	chainID := big.NewInt(1)
	to := common.HexToAddress("0x01")
	tx := types.NewTx(&types.DynamicFeeTx{ChainID: chainID, Nonce: 1, Gas: 21000, GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(2), To: &to, Value: big.NewInt(0)})

	signed, err := s.SignTx(tx, chainID)
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), from)
}

func TestOpenKeystore_CreatesThenReloads(t *testing.T) {
	dir := t.TempDir()

	first, err := OpenKeystore(dir, "pw", keystore.LightScryptN, keystore.LightScryptP, testLogger())
	require.NoError(t, err)

	assert.True(t, first.Created())

	second, err := OpenKeystore(dir, "pw", keystore.LightScryptN, keystore.LightScryptP, testLogger())
	require.NoError(t, err)
	assert.Equal(t, first.Address(), second.Address())
	assert.False(t, second.Created())

	_, err = OpenKeystore(dir, "wrong", keystore.LightScryptN, keystore.LightScryptP, testLogger())
	assert.Error(t, err)

	chainID := big.NewInt(5)
	to := common.HexToAddress("0x02")
	tx := types.NewTx(&types.LegacyTx{Nonce: 0, Gas: 21000, GasPrice: big.NewInt(1), To: &to, Value: big.NewInt(0)})
	signed, err := second.SignTx(tx, chainID)
	require.NoError(t, err)
	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, first.Address(), from)
}

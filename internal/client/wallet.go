package client

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hitoshi/launchboard/internal/auth"
)

// Wallet はCLIから署名を行うためのローカル秘密鍵。
type Wallet struct {
	key *ecdsa.PrivateKey
}

// LoadWallet は16進表現（0xプレフィックス任意）の秘密鍵からWalletを生成する。
func LoadWallet(hexKey string) (*Wallet, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("wallet private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet private key: %w", err)
	}
	return &Wallet{key: key}, nil
}

// Address はチェックサム付きのウォレットアドレスを返す。
func (w *Wallet) Address() string {
	return crypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

// Sign はpersonal_sign形式でメッセージに署名し、ログイン要求を組み立てる。
// 署名のvは27/28で返す（ウォレット拡張と同じ形式）。
func (w *Wallet) Sign(message string) (auth.WalletSignature, error) {
	sig, err := crypto.Sign(auth.PersonalMessageHash(message), w.key)
	if err != nil {
		return auth.WalletSignature{}, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[64] += 27

	return auth.WalletSignature{
		Address:   w.Address(),
		Signature: hexutil.Encode(sig),
		Message:   message,
	}, nil
}

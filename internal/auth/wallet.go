package auth

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"github.com/hitoshi/launchboard/internal/model"
)

// 署名長。
const (
	signatureLength        = 65 // r(32) + s(32) + v(1)
	compactSignatureLength = 64 // EIP-2098: r(32) + yParity(1bit)|s(255bit)
)

// personalMessagePrefix はpersonal_signで署名対象に前置される接頭辞。
const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// PersonalMessageHash はpersonal_sign形式のメッセージハッシュを返す。
// keccak256("\x19Ethereum Signed Message:\n" + len(message) + message)
func PersonalMessageHash(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "%s%d%s", personalMessagePrefix, len(message), message)
	return h.Sum(nil)
}

// IsWalletAddress は0x接頭辞付きの40桁16進アドレスかを返す。
func IsWalletAddress(address string) bool {
	return len(address) == 2+2*common.AddressLength &&
		strings.HasPrefix(address, "0x") &&
		common.IsHexAddress(address)
}

// decodeSignature は0x接頭辞付き16進の署名をデコードし、vを0/1に正規化する。
// 64バイトのEIP-2098コンパクト署名は65バイト形式に展開する。
func decodeSignature(signature string) ([]byte, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("signature is not 0x-prefixed hex: %w", err)
	}
	if len(sig) == compactSignatureLength {
		sig = expandCompactSignature(sig)
	}
	if len(sig) != signatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", signatureLength, len(sig))
	}

	// ウォレットはvを27/28で返すが、公開鍵復元は0/1を要求する
	switch sig[64] {
	case 27, 28:
		sig[64] -= 27
	case 0, 1:
	default:
		return nil, fmt.Errorf("unsupported recovery id %d", sig[64])
	}
	return sig, nil
}

// expandCompactSignature はEIP-2098形式（sの最上位ビットがyParity）をr || s || vに展開する。
func expandCompactSignature(compact []byte) []byte {
	sig := make([]byte, signatureLength)
	copy(sig, compact)
	sig[64] = sig[32] >> 7
	sig[32] &= 0x7f
	return sig
}

// verifyWalletSignature は署名から署名者アドレスを復元し、申告アドレスと照合する。
// 成功時は小文字化したアドレスを返す。
// 入力不備は暗号処理の前にBadRequestで、復元失敗と不一致はInvalidSignatureで失敗する。
func verifyWalletSignature(ws WalletSignature) (string, error) {
	if ws.Address == "" || ws.Signature == "" || ws.Message == "" {
		return "", model.NewBadRequestError("address, signature and message are required")
	}
	if !IsWalletAddress(ws.Address) {
		return "", model.NewBadRequestError("address must be a 0x-prefixed 20-byte hex string")
	}
	sig, err := decodeSignature(ws.Signature)
	if err != nil {
		return "", model.NewBadRequestError("malformed signature")
	}

	pub, err := crypto.SigToPub(PersonalMessageHash(ws.Message), sig)
	if err != nil {
		return "", model.NewInvalidSignatureError(fmt.Errorf("failed to recover public key: %w", err))
	}

	recovered := crypto.PubkeyToAddress(*pub).Hex()
	if !strings.EqualFold(recovered, ws.Address) {
		return "", model.NewInvalidSignatureError(fmt.Errorf("recovered address %s does not match", strings.ToLower(recovered)))
	}

	return strings.ToLower(ws.Address), nil
}

// Package model はドメインモデルを定義する。
package model

import "time"

// 認証プロバイダー名。Identity.Provider および anchor カラムの選択に使用する。
const (
	ProviderGoogle   = "google"
	ProviderEthereum = "ethereum"
)

// User はサービス利用ユーザーを表す。
// GoogleID と EthAddress のいずれか一方以上が認証アンカーとして必ず設定される。
type User struct {
	ID          string
	GoogleID    string // 空の場合はGoogle未連携
	EthAddress  string // 小文字に正規化済み。空の場合はウォレット未連携
	Name        string
	Email       string
	Description string
	Title       string
	Avatar      string
	BannerImage string
	Banner      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AnchorFor は指定プロバイダーのアンカー値を返す。
func (u *User) AnchorFor(provider string) string {
	switch provider {
	case ProviderGoogle:
		return u.GoogleID
	case ProviderEthereum:
		return u.EthAddress
	default:
		return ""
	}
}

// HasAnchor は認証アンカーが1つ以上設定されているかを返す。
func (u *User) HasAnchor() bool {
	return u.GoogleID != "" || u.EthAddress != ""
}

// Identity は資格情報検証後の正規化された外部アイデンティティを表す。
// どのプロバイダー経由でも同一の形で Identity Store に渡される。
type Identity struct {
	Provider   string // "google" または "ethereum"
	ProviderID string // Google subject ID または小文字化したEthereumアドレス
	Name       string // Googleプロフィール名。ウォレットでは空
	Email      string // Googleプロフィールのメール。ウォレットでは空
	Avatar     string // Googleプロフィール画像URL。ウォレットでは空
}

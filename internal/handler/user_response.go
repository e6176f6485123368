package handler

import (
	"time"

	"github.com/hitoshi/launchboard/internal/model"
)

// userResponse はユーザー情報のJSON表現。
// 未連携の認証アンカーは出力しない。
type userResponse struct {
	ID          string    `json:"id"`
	GoogleID    string    `json:"googleId,omitempty"`
	EthAddress  string    `json:"ethAddress,omitempty"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Description string    `json:"description"`
	Title       string    `json:"title"`
	Avatar      string    `json:"avatar"`
	BannerImage string    `json:"bannerImage"`
	Banner      string    `json:"banner"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		GoogleID:    u.GoogleID,
		EthAddress:  u.EthAddress,
		Name:        u.Name,
		Email:       u.Email,
		Description: u.Description,
		Title:       u.Title,
		Avatar:      u.Avatar,
		BannerImage: u.BannerImage,
		Banner:      u.Banner,
		CreatedAt:   u.CreatedAt.UTC(),
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/launchboard/internal/model"
	"github.com/hitoshi/launchboard/internal/repository"
	"github.com/hitoshi/launchboard/internal/security"
)

// ウォレットユーザーの合成プロフィール。
const (
	walletNamePrefix   = "User "
	walletEmailDomain  = "@eth.user"
	walletShortAddrLen = 6 // "0x" + 先頭4桁
)

// IdentityStore は検証済みIdentityを永続化されたUserに対応付ける。
// 見つからない場合はUserを作成する。プロバイダーによる分岐はユーザー生成時のみ。
type IdentityStore struct {
	repo      repository.UserRepository
	sanitizer security.ProfileSanitizer
	timeout   time.Duration
}

// NewIdentityStore はIdentityStoreを生成する。timeoutは各ストア呼び出しに適用される。
func NewIdentityStore(repo repository.UserRepository, sanitizer security.ProfileSanitizer, timeout time.Duration) *IdentityStore {
	return &IdentityStore{repo: repo, sanitizer: sanitizer, timeout: timeout}
}

// Resolve はアンカーでユーザーを検索し、無ければ作成する。
// 2つ目の戻り値は新規作成したかどうか。
// 同時初回ログインでアンカーの一意制約に衝突した場合は検索を1回だけ再試行し、
// それでも見つからなければDuplicateIdentityを返す。
func (s *IdentityStore) Resolve(ctx context.Context, id *model.Identity) (*model.User, bool, error) {
	if id == nil || id.ProviderID == "" {
		return nil, false, model.NewBadRequestError("identity is required")
	}

	user, err := s.findByAnchor(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}

	newUser := s.newUser(id)
	err = s.create(ctx, newUser)
	if err == nil {
		return newUser, true, nil
	}

	if errors.Is(err, repository.ErrDuplicateEmail) && id.Provider == model.ProviderEthereum {
		// 先頭6文字が共通する別アドレスと合成メールが衝突した場合はフルアドレスで作り直す
		slog.Debug("synthetic wallet email collided, retrying with full address",
			slog.String("address", id.ProviderID),
		)
		newUser.Email = id.ProviderID + walletEmailDomain
		err = s.create(ctx, newUser)
		if err == nil {
			return newUser, true, nil
		}
	}

	if errors.Is(err, repository.ErrDuplicateAnchor) {
		conflict := model.NewDuplicateIdentityError(err)
		user, findErr := s.findByAnchor(ctx, id)
		if findErr != nil {
			return nil, false, findErr
		}
		if user == nil {
			return nil, false, conflict
		}
		slog.Debug("concurrent first login resolved by lookup retry",
			slog.String("provider", id.Provider),
			slog.String("user_id", user.ID),
		)
		return user, false, nil
	}

	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, false, model.NewDuplicateIdentityError(err)
	}

	return nil, false, err
}

// FindUser はIDでユーザーを取得する。見つからない場合はnilを返す。
func (s *IdentityStore) FindUser(ctx context.Context, userID string) (*model.User, error) {
	var user *model.User
	err := s.withTimeout(ctx, "find user", func(ctx context.Context) error {
		var err error
		user, err = s.repo.FindByID(ctx, userID)
		return err
	})
	return user, err
}

func (s *IdentityStore) findByAnchor(ctx context.Context, id *model.Identity) (*model.User, error) {
	var user *model.User
	err := s.withTimeout(ctx, "find user by anchor", func(ctx context.Context) error {
		var err error
		user, err = s.repo.FindByAnchor(ctx, id.Provider, id.ProviderID)
		return err
	})
	return user, err
}

// create はユーザーを作成する。一意制約違反はセンチネルエラーを保ったまま返す。
func (s *IdentityStore) create(ctx context.Context, user *model.User) error {
	return s.withTimeout(ctx, "create user", func(ctx context.Context) error {
		return s.repo.Create(ctx, user)
	})
}

// withTimeout はストア呼び出しにタイムアウトを適用し、エラーをドメインエラーに変換する。
// 一意制約違反は呼び出し側で扱うため変換しない。
func (s *IdentityStore) withTimeout(ctx context.Context, op string, fn func(context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := fn(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDuplicateAnchor), errors.Is(err, repository.ErrDuplicateEmail):
		return err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return model.NewTimeoutError("user store", fmt.Errorf("%s: %w", op, err))
	default:
		return model.NewInternalError(fmt.Errorf("%s: %w", op, err))
	}
}

// newUser はIdentityから新規ユーザーを組み立てる。
func (s *IdentityStore) newUser(id *model.Identity) *model.User {
	switch id.Provider {
	case model.ProviderEthereum:
		address := strings.ToLower(id.ProviderID)
		short := address
		if len(short) > walletShortAddrLen {
			short = short[:walletShortAddrLen]
		}
		return &model.User{
			EthAddress: address,
			Name:       walletNamePrefix + short,
			Email:      short + walletEmailDomain,
		}
	default:
		return &model.User{
			GoogleID: id.ProviderID,
			Name:     s.sanitizer.DisplayName(id.Name, id.Email),
			Email:    strings.ToLower(strings.TrimSpace(id.Email)),
			Avatar:   s.sanitizer.AvatarURL(id.Avatar),
		}
	}
}

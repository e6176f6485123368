// Package auth は資格情報の検証、ユーザーの解決、セッショントークンの発行を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/launchboard/internal/metrics"
	"github.com/hitoshi/launchboard/internal/model"
)

// LoginState はログイン試行の状態。
// Received → Verifying → {Rejected | Verified} → Resolving → {Conflict | Resolved} → Issuing → Issued
type LoginState string

// ログイン試行の状態。Rejected, Conflict, Failed, Issued が終端状態。
const (
	StateReceived  LoginState = "received"
	StateVerifying LoginState = "verifying"
	StateRejected  LoginState = "rejected"
	StateVerified  LoginState = "verified"
	StateResolving LoginState = "resolving"
	StateConflict  LoginState = "conflict"
	StateResolved  LoginState = "resolved"
	StateIssuing   LoginState = "issuing"
	StateIssued    LoginState = "issued"
	StateFailed    LoginState = "failed" // タイムアウト・内部エラー
)

// トークン検証結果のメトリクスラベル。
const (
	tokenResultValid   = "valid"
	tokenResultInvalid = "invalid"
	tokenResultExpired = "expired"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// RequireWalletNonce がtrueの場合、ウォレットログインは発行済みチャレンジへの署名を必須とする。
	RequireWalletNonce bool
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
	Created   bool
}

// Service はログインの状態遷移を統括する。
type Service struct {
	oauth      OAuthProvider
	verifier   *Verifier
	store      *IdentityStore
	issuer     *TokenIssuer
	challenges *ChallengeIssuer
	metrics    metrics.MetricsCollector
	config     ServiceConfig
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	oauth OAuthProvider,
	verifier *Verifier,
	store *IdentityStore,
	issuer *TokenIssuer,
	challenges *ChallengeIssuer,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		oauth:      oauth,
		verifier:   verifier,
		store:      store,
		issuer:     issuer,
		challenges: challenges,
		metrics:    collector,
		config:     config,
	}
}

// LoginURL はOAuth認証URLを生成する。
func (s *Service) LoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// LoginWithGoogle は認可コードでログインし、トークンを発行する。
func (s *Service) LoginWithGoogle(ctx context.Context, code string) (*LoginResult, error) {
	return s.login(ctx, GoogleAuthorization{Code: code}, nil)
}

// LoginWithWallet はウォレット署名でログインし、トークンを発行する。
// 署名検証後、メッセージにチャレンジnonceが含まれていれば消費する。
func (s *Service) LoginWithWallet(ctx context.Context, ws WalletSignature) (*LoginResult, error) {
	return s.login(ctx, ws, func(ctx context.Context, id *model.Identity) error {
		if s.challenges == nil {
			if s.config.RequireWalletNonce {
				return model.NewInternalError(fmt.Errorf("wallet nonce required but no challenge store configured"))
			}
			return nil
		}
		if err := s.challenges.Redeem(ctx, id.ProviderID, ws.Message, s.config.RequireWalletNonce); err != nil {
			if model.KindOf(err) == model.KindInvalidSignature {
				return err
			}
			return model.NewInternalError(err)
		}
		return nil
	})
}

// IssueWalletChallenge はウォレットに署名させるチャレンジを発行する。
func (s *Service) IssueWalletChallenge(ctx context.Context, address string) (*Challenge, error) {
	if s.challenges == nil {
		return nil, model.NewInternalError(fmt.Errorf("challenge store is not configured"))
	}
	challenge, err := s.challenges.Issue(ctx, address)
	if err != nil {
		if model.KindOf(err) == model.KindBadRequest {
			return nil, err
		}
		return nil, model.NewInternalError(err)
	}
	return challenge, nil
}

// CurrentUser はトークンを検証し、埋め込まれたユーザーIDのユーザーを返す。
// トークン検証に失敗した場合はストアを参照しない。
func (s *Service) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	return s.UserByID(ctx, userID)
}

// VerifyToken はトークンを検証してユーザーIDを返す。ストアは参照しない。
func (s *Service) VerifyToken(token string) (string, error) {
	userID, err := s.issuer.Verify(token)
	if err != nil {
		if model.IsKind(err, model.KindTokenExpired) {
			s.metrics.RecordTokenVerification(tokenResultExpired)
		} else {
			s.metrics.RecordTokenVerification(tokenResultInvalid)
		}
		return "", err
	}
	s.metrics.RecordTokenVerification(tokenResultValid)
	return userID, nil
}

// UserByID は検証済みトークンのユーザーIDからユーザーを取得する。
// 存在しない場合はUserNotFoundを返す。
func (s *Service) UserByID(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// login は資格情報の検証、ユーザーの解決、トークンの発行を順に行う。
// afterVerifyは検証成功後、ユーザー解決前に呼ばれ、エラーの場合はRejectedとなる。
func (s *Service) login(ctx context.Context, src IdentitySource, afterVerify func(context.Context, *model.Identity) error) (*LoginResult, error) {
	if src == nil {
		return nil, model.NewBadRequestError("credential is required")
	}

	attempt := newLoginAttempt(src.provider())
	defer func() {
		s.metrics.RecordLogin(attempt.provider, string(attempt.state))
		s.metrics.RecordLoginLatency(attempt.provider, time.Since(attempt.started))
	}()

	attempt.transition(StateVerifying)
	identity, err := s.verifier.Verify(ctx, src)
	if err == nil && afterVerify != nil {
		err = afterVerify(ctx, identity)
	}
	if err != nil {
		attempt.fail(StateRejected, err)
		return nil, err
	}
	attempt.transition(StateVerified, slog.String("provider_id", identity.ProviderID))

	attempt.transition(StateResolving)
	user, created, err := s.store.Resolve(ctx, identity)
	if err != nil {
		if model.IsKind(err, model.KindDuplicateIdentity) {
			attempt.fail(StateConflict, err)
		} else {
			attempt.fail(StateFailed, err)
		}
		return nil, err
	}
	if created {
		s.metrics.RecordUserCreated(attempt.provider)
		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("provider", attempt.provider),
		)
	}
	attempt.transition(StateResolved, slog.String("user_id", user.ID))

	attempt.transition(StateIssuing)
	token, expiresAt, err := s.issuer.Issue(user.ID)
	if err != nil {
		wrapped := model.NewInternalError(err)
		attempt.fail(StateFailed, wrapped)
		return nil, wrapped
	}
	attempt.transition(StateIssued)

	slog.Info("login succeeded",
		slog.String("user_id", user.ID),
		slog.String("provider", attempt.provider),
		slog.Bool("created", created),
	)

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
		Created:   created,
	}, nil
}

// loginAttempt は1回のログイン試行の状態を追跡する。
type loginAttempt struct {
	provider string
	state    LoginState
	started  time.Time
}

func newLoginAttempt(provider string) *loginAttempt {
	a := &loginAttempt{provider: provider, started: time.Now()}
	a.transition(StateReceived)
	return a
}

func (a *loginAttempt) transition(next LoginState, attrs ...slog.Attr) {
	a.state = next
	args := []any{
		slog.String("provider", a.provider),
		slog.String("state", string(next)),
	}
	for _, attr := range attrs {
		args = append(args, attr)
	}
	slog.Debug("login state transition", args...)
}

// fail は終端の失敗状態に遷移する。Causeはサーバーログにのみ出力する。
func (a *loginAttempt) fail(terminal LoginState, err error) {
	a.state = terminal
	level := slog.LevelWarn
	if terminal == StateFailed {
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, "login attempt ended",
		slog.String("provider", a.provider),
		slog.String("state", string(terminal)),
		slog.String("kind", string(model.KindOf(err))),
		slog.String("error", err.Error()),
	)
}

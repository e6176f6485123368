package auth

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/hitoshi/launchboard/internal/model"
	"github.com/hitoshi/launchboard/internal/repository"
)

// --- モック定義 ---

// fakeUserRepo はusersテーブルの一意制約を再現するインメモリ実装。
// 関数フィールドを設定した場合はそちらを優先する。
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User

	findByIDCalls     int
	findByAnchorCalls int
	createCalls       int

	findByIDFn     func(ctx context.Context, id string) (*model.User, error)
	findByAnchorFn func(ctx context.Context, provider, providerID string) (*model.User, error)
	createFn       func(ctx context.Context, user *model.User) error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	r.findByIDCalls++
	r.mu.Unlock()
	if r.findByIDFn != nil {
		return r.findByIDFn(ctx, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByAnchor(ctx context.Context, provider, providerID string) (*model.User, error) {
	r.mu.Lock()
	r.findByAnchorCalls++
	r.mu.Unlock()
	if r.findByAnchorFn != nil {
		return r.findByAnchorFn(ctx, provider, providerID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if provider == model.ProviderEthereum {
		providerID = strings.ToLower(providerID)
	}
	for _, u := range r.users {
		if u.AnchorFor(provider) == providerID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	r.createCalls++
	r.mu.Unlock()
	if r.createFn != nil {
		return r.createFn(ctx, user)
	}
	return r.insert(user)
}

// insert は一意制約を検査してユーザーを保存する。
func (r *fakeUserRepo) insert(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if user.GoogleID != "" && u.GoogleID == user.GoogleID {
			return repository.ErrDuplicateAnchor
		}
		if user.EthAddress != "" && u.EthAddress == user.EthAddress {
			return repository.ErrDuplicateAnchor
		}
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*fakeUserRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)

// --- 署名ヘルパー ---

// newWalletKey はテスト用のsecp256k1鍵とそのアドレス（チェックサム形式）を返す。
func newWalletKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

// signPersonal はウォレットと同じくv=27/28のpersonal_sign署名を返す。
func signPersonal(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(PersonalMessageHash(message), key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig)
}

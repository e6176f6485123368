package client

import "strings"

// Gate は保護された画面への遷移を認証状態で制御する。
type Gate struct {
	store     *SessionStore
	protected []string
}

// NewGate はGateを生成する。protectedに指定したパスとその配下が保護対象となる。
func NewGate(store *SessionStore, protected ...string) *Gate {
	return &Gate{store: store, protected: protected}
}

// Guard は遷移のたびに評価する。
// 保護対象で未認証の場合はログイン画面へ遷移させる。期限切れのセッションはここで破棄する。
func (g *Gate) Guard(path string) Navigation {
	if session, ok := g.store.Current(); !ok && !session.IsZero() {
		g.store.Logout()
	}

	if g.isProtected(path) && !g.store.IsAuthenticated() {
		return Navigation{To: LoginPath}
	}
	return Navigation{To: path}
}

func (g *Gate) isProtected(path string) bool {
	for _, prefix := range g.protected {
		if path == prefix || strings.HasPrefix(path, strings.TrimRight(prefix, "/")+"/") {
			return true
		}
	}
	return false
}

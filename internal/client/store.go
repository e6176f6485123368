package client

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Persister はセッションの永続化先。
type Persister interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// Listener はセッション変更の通知を受け取る。authenticatedはその時点の認証状態。
type Listener func(session Session, authenticated bool)

// SessionStore はクライアントのセッションを保持する唯一の所有者。
// 認証状態は保持しているセッションから都度導出する。
type SessionStore struct {
	mu        sync.RWMutex
	current   Session
	persister Persister
	now       func() time.Time

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// NewSessionStore はSessionStoreを生成する。
// persisterがnilでない場合、期限内の保存済みセッションを復元する。
func NewSessionStore(persister Persister) *SessionStore {
	s := &SessionStore{
		persister: persister,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	s.restore()
	return s
}

func (s *SessionStore) restore() {
	if s.persister == nil {
		return
	}

	saved, err := s.persister.Load()
	if err != nil {
		slog.Warn("failed to load saved session", slog.String("error", err.Error()))
		return
	}
	if saved.IsZero() {
		return
	}
	if saved.Expired(s.now()) {
		slog.Info("saved session expired", slog.Time("expires_at", saved.ExpiresAt))
		if err := s.persister.Clear(); err != nil {
			slog.Warn("failed to clear expired session", slog.String("error", err.Error()))
		}
		return
	}
	s.current = saved
}

// Login はセッションを保存する。トークンが空の場合はエラーを返し、状態を変更しない。
// 有効期限が未設定の場合はトークンのexpから補完する。
func (s *SessionStore) Login(session Session) error {
	if session.IsZero() {
		return fmt.Errorf("session token is required")
	}
	if session.ExpiresAt.IsZero() {
		if fromToken, err := SessionFromToken(session.Token); err == nil {
			session.ExpiresAt = fromToken.ExpiresAt
			if session.ID == "" {
				session.ID = fromToken.ID
			}
		}
	}

	s.mu.Lock()
	s.current = session
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Save(session); err != nil {
			slog.Warn("failed to persist session", slog.String("error", err.Error()))
		}
	}

	s.notify(session, s.IsAuthenticated())
	return nil
}

// Logout はセッションを破棄する。
func (s *SessionStore) Logout() {
	s.mu.Lock()
	s.current = Session{}
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Clear(); err != nil {
			slog.Warn("failed to clear persisted session", slog.String("error", err.Error()))
		}
	}

	s.notify(Session{}, false)
}

// Current は現在のセッションと、それが有効かを返す。
func (s *SessionStore) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.valid(s.current)
}

// IsAuthenticated は有効なセッションを保持しているかを返す。
func (s *SessionStore) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}

// Token は有効なセッションのトークンを返す。
func (s *SessionStore) Token() (string, bool) {
	session, ok := s.Current()
	if !ok {
		return "", false
	}
	return session.Token, true
}

// Subscribe はセッション変更の通知を登録し、登録解除関数を返す。
func (s *SessionStore) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *SessionStore) valid(session Session) bool {
	return !session.IsZero() && !session.Expired(s.now())
}

func (s *SessionStore) notify(session Session, authenticated bool) {
	s.listenersMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(session, authenticated)
	}
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
)

// memStore is an in-memory UnitOfWork enforcing the same unique constraints as the schema.
// Writes are staged per transaction and checked again at commit, like a database would.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*entities.User         // by id
	links  map[string]*entities.ProviderLink // by provider:subject
	nextID int

	begins, commits, rollbacks, updates int

	// errs injects an error for an operation name ("create_user", "get_user_by_email", ...)
	errs map[string]error

	// beforeCreateUser runs once, just before the first user insert, outside the store lock
	beforeCreateUser func()
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]*entities.User),
		links: make(map[string]*entities.ProviderLink),
		errs:  make(map[string]error),
	}
}

func (m *memStore) Begin(ctx context.Context) (repositories.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["begin"]; err != nil {
		return nil, err
	}
	m.begins++
	tx := &memTx{
		store: m,
		users: make(map[string]*entities.User),
		links: make(map[string]*entities.ProviderLink),
	}
	tx.repos = &repositories.Repositories{Users: &memUsers{tx: tx}, Links: &memLinks{tx: tx}}
	return tx, nil
}

// Repositories returns auto-committing repositories
func (m *memStore) Repositories() *repositories.Repositories {
	return &repositories.Repositories{Users: &memUsers{store: m}, Links: &memLinks{store: m}}
}

func (m *memStore) genID() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *memStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *memStore) linkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

func (m *memStore) linksFor(userID string) []*entities.ProviderLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entities.ProviderLink
	for _, l := range m.links {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out
}

func (m *memStore) userByEmail(email string) *entities.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c
		}
	}
	return nil
}

func linkKey(p entities.Provider, subject string) string {
	return string(p) + ":" + subject
}

// emailTaken must be called with the lock held
func (m *memStore) emailTaken(email, exceptID string) bool {
	for id, u := range m.users {
		if u.Email == email && id != exceptID {
			return true
		}
	}
	return false
}

type memTx struct {
	store     *memStore
	repos     *repositories.Repositories
	users     map[string]*entities.User
	links     map[string]*entities.ProviderLink
	hooks     []func()
	committed bool
	done      bool
}

func (t *memTx) Commit() error {
	m := t.store
	m.mu.Lock()
	if err := m.errs["commit"]; err != nil {
		m.mu.Unlock()
		return err
	}
	for id, u := range t.users {
		if _, exists := m.users[id]; !exists && m.emailTaken(u.Email, id) {
			m.mu.Unlock()
			return repositories.ErrDuplicateEmail
		}
	}
	for key := range t.links {
		if _, exists := m.links[key]; exists {
			m.mu.Unlock()
			return repositories.ErrDuplicateLink
		}
	}
	for id, u := range t.users {
		m.users[id] = u
	}
	for key, l := range t.links {
		m.links[key] = l
	}
	m.commits++
	m.mu.Unlock()

	t.committed, t.done = true, true
	for _, h := range t.hooks {
		h()
	}
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	t.store.rollbacks++
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) GetRepositories() *repositories.Repositories { return t.repos }

func (t *memTx) AfterCommit(fn func()) { t.hooks = append(t.hooks, fn) }

// memUsers reads through the transaction's staged writes when tx is set
type memUsers struct {
	tx    *memTx
	store *memStore
}

func (r *memUsers) s() *memStore {
	if r.tx != nil {
		return r.tx.store
	}
	return r.store
}

func (r *memUsers) Create(ctx context.Context, user *entities.User) error {
	m := r.s()
	m.mu.Lock()
	hook := m.beforeCreateUser
	m.beforeCreateUser = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["create_user"]; err != nil {
		return err
	}
	if m.emailTaken(user.Email, "") {
		return repositories.ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = m.genID()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	c := *user
	if r.tx != nil {
		for _, staged := range r.tx.users {
			if staged.Email == user.Email {
				return repositories.ErrDuplicateEmail
			}
		}
		r.tx.users[user.ID] = &c
	} else {
		m.users[user.ID] = &c
	}
	return nil
}

func (r *memUsers) find(match func(*entities.User) bool) *entities.User {
	if r.tx != nil {
		for _, u := range r.tx.users {
			if match(u) {
				c := *u
				return &c
			}
		}
	}
	for _, u := range r.s().users {
		if match(u) {
			c := *u
			return &c
		}
	}
	return nil
}

func (r *memUsers) GetByID(ctx context.Context, id string) (*entities.User, error) {
	m := r.s()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["get_user_by_id"]; err != nil {
		return nil, err
	}
	if u := r.find(func(u *entities.User) bool { return u.ID == id }); u != nil {
		return u, nil
	}
	return nil, repositories.ErrUserNotFound
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	m := r.s()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["get_user_by_email"]; err != nil {
		return nil, err
	}
	if u := r.find(func(u *entities.User) bool { return u.Email == email }); u != nil {
		return u, nil
	}
	return nil, repositories.ErrUserNotFound
}

func (r *memUsers) Update(ctx context.Context, user *entities.User) error {
	m := r.s()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["update_user"]; err != nil {
		return err
	}
	if r.find(func(u *entities.User) bool { return u.ID == user.ID }) == nil {
		return repositories.ErrUserNotFound
	}
	m.updates++
	user.UpdatedAt = time.Now().UTC()
	c := *user
	if r.tx != nil {
		r.tx.users[user.ID] = &c
	} else {
		m.users[user.ID] = &c
	}
	return nil
}

func (r *memUsers) List(ctx context.Context, opts repositories.ListUsersOptions) ([]*entities.User, int64, error) {
	m := r.s()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entities.User
	for _, u := range m.users {
		c := *u
		out = append(out, &c)
	}
	return out, int64(len(out)), nil
}

type memLinks struct {
	tx    *memTx
	store *memStore
}

func (r *memLinks) s() *memStore {
	if r.tx != nil {
		return r.tx.store
	}
	return r.store
}

func (r *memLinks) Create(ctx context.Context, link *entities.ProviderLink) error {
	m := r.s()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["create_link"]; err != nil {
		return err
	}
	key := linkKey(link.Provider, link.ProviderUserID)
	if _, exists := m.links[key]; exists {
		return repositories.ErrDuplicateLink
	}
	if link.ID == "" {
		link.ID = m.genID()
	}
	link.CreatedAt = time.Now().UTC()
	c := *link
	if r.tx != nil {
		if _, exists := r.tx.links[key]; exists {
			return repositories.ErrDuplicateLink
		}
		r.tx.links[key] = &c
	} else {
		m.links[key] = &c
	}
	return nil
}

func (r *memLinks) GetByProviderAndSubject(ctx context.Context, provider entities.Provider, subject string) (*entities.ProviderLink, error) {
	m := r.s()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["get_link"]; err != nil {
		return nil, err
	}
	key := linkKey(provider, subject)
	if r.tx != nil {
		if l, ok := r.tx.links[key]; ok {
			c := *l
			return &c, nil
		}
	}
	if l, ok := m.links[key]; ok {
		c := *l
		return &c, nil
	}
	return nil, repositories.ErrLinkNotFound
}

func (r *memLinks) ListByUserID(ctx context.Context, userID string) ([]*entities.ProviderLink, error) {
	return r.s().linksFor(userID), nil
}

var (
	_ repositories.UnitOfWork             = (*memStore)(nil)
	_ repositories.UserRepository         = (*memUsers)(nil)
	_ repositories.ProviderLinkRepository = (*memLinks)(nil)
)

package authorityfake

import (
	"context"
	"sync"

	"github.com/zapconecta/session-server/authz"
)

var _ authz.Authority = (*FakeAuthority)(nil)

type FakeAuthority struct {
	lock       sync.Mutex
	users      []authz.AuthorizedUser
	err        error
	fetchCount int
}

func NewFakeAuthority(users ...authz.AuthorizedUser) *FakeAuthority {
	return &FakeAuthority{users: users}
}

func (fa *FakeAuthority) SetUsers(users ...authz.AuthorizedUser) {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	fa.users = users
}

func (fa *FakeAuthority) SetError(err error) {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	fa.err = err
}

func (fa *FakeAuthority) FetchCount() int {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	return fa.fetchCount
}

func (fa *FakeAuthority) FetchAuthorizedUsers(_ context.Context) ([]authz.AuthorizedUser, error) {
	fa.lock.Lock()
	defer fa.lock.Unlock()
	fa.fetchCount++
	if fa.err != nil {
		return nil, fa.err
	}
	users := make([]authz.AuthorizedUser, len(fa.users))
	copy(users, fa.users)
	return users, nil
}

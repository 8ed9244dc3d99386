package users

import (
	"context"
	"sync"
)

type repoMock struct {
	mutex  sync.Mutex
	users  map[int]*User
	nextID int
}

func NewMockUsersRepo() *repoMock {
	return &repoMock{
		users:  make(map[int]*User),
		nextID: 1,
	}
}

func (r *repoMock) Create(_ context.Context, user User) (*User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = &user
	return &user, nil
}

func (r *repoMock) GetByID(_ context.Context, id int) (*User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (r *repoMock) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *repoMock) EmailTaken(_ context.Context, email string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *repoMock) UsernameTaken(_ context.Context, username string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *repoMock) UpdateOnboarding(_ context.Context, id int, username, fullName string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.Username = username
	user.FullName = fullName
	return nil
}

func (r *repoMock) UpdateSettings(_ context.Context, id int, fullName, image string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.FullName = fullName
	user.Image = image
	return nil
}

package storage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/khetumewada/WebChat/internal/models"
)

var bucketUsers = []byte("users")

// BboltStorage is the relay's user directory.
type BboltStorage struct {
	db *bbolt.DB

	// version is bumped on every write so readers can key caches on it.
	version atomic.Uint64
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketUsers)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

func (s *BboltStorage) Version() uint64 {
	return s.version.Load()
}

// AddUser creates a user with the next numeric ID. Usernames are unique,
// compared case-insensitively.
func (s *BboltStorage) AddUser(user models.User) (models.User, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)

		taken := false
		err := b.ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			if strings.EqualFold(dbUser.UserName, user.UserName) {
				taken = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("user %q: %w", user.UserName, models.ErrAlreadyExists)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		user.ID = models.UserID(strconv.FormatUint(seq, 10))
		return putUser(b, user)
	})
	if err != nil {
		return models.User{}, err
	}
	s.version.Add(1)
	return user, nil
}

// UpsertUser stores new or updated user data under its existing ID.
func (s *BboltStorage) UpsertUser(user models.User) error {
	if user.ID == "" {
		return fmt.Errorf("user %q has no id", user.UserName)
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putUser(tx.Bucket(bucketUsers), user)
	})
	if err != nil {
		return err
	}
	s.version.Add(1)
	return nil
}

func (s *BboltStorage) GetUser(id models.UserID) (models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("user %s: %w", id, models.ErrNotFound)
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		user = dbUser.toModel()
		return nil
	})
	return user, err
}

// ListUsers returns every user ordered by username.
func (s *BboltStorage) ListUsers() ([]models.User, error) {
	var users []models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			users = append(users, dbUser.toModel())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].UserName < users[j].UserName
	})
	return users, nil
}

// SearchUsers matches query case-insensitively against username and full
// name, skipping exclude. At most limit users are returned.
func (s *BboltStorage) SearchUsers(query string, exclude models.UserID, limit int) ([]models.User, error) {
	all, err := s.ListUsers()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	found := make([]models.User, 0, limit)
	for _, u := range all {
		if len(found) == limit {
			break
		}
		if u.ID == exclude {
			continue
		}
		if strings.Contains(strings.ToLower(u.UserName), q) || strings.Contains(strings.ToLower(u.FullName), q) {
			found = append(found, u)
		}
	}
	return found, nil
}

func (s *BboltStorage) SetPresence(id models.UserID, presence models.Presence) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("user %s: %w", id, models.ErrNotFound)
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		dbUser.Online = presence.Online
		dbUser.LastSeen = presence.LastSeen
		return put(b, &dbUser)
	})
	if err != nil {
		return err
	}
	s.version.Add(1)
	return nil
}

func putUser(b *bbolt.Bucket, user models.User) error {
	return put(b, &DBUser{
		ID:           string(user.ID),
		UserName:     user.UserName,
		FullName:     user.FullName,
		ProfileImage: user.ProfileImage,
		Online:       user.Presence.Online,
		LastSeen:     user.Presence.LastSeen,
	})
}

func put(b *bbolt.Bucket, item Storeable) error {
	data, err := item.MarshalBinary()
	if err != nil {
		return err
	}
	return b.Put(item.Key(), data)
}

func (u *DBUser) toModel() models.User {
	return models.User{
		ID:           models.UserID(u.ID),
		UserName:     u.UserName,
		FullName:     u.FullName,
		ProfileImage: u.ProfileImage,
		Presence: models.Presence{
			Online:   u.Online,
			LastSeen: u.LastSeen,
		},
	}
}

package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-core/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(username, email, hashedPassword string) (string, error)
	GetByUsername(username string) (User, error)
	GetByID(id string) (User, error)
	ListUsers() ([]User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the repository-level representation of an account in the directory.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type diskUser struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

func userKey(username string) []byte { return []byte("user:" + username) }
func userIDKey(id string) []byte     { return []byte("userid:" + id) }

// CreateUser persists a new user and returns the generated id.
// The username is the uniqueness anchor; a secondary key maps id to username
// so token claims (which carry the id) can be resolved back to an account.
func (u UserRepository) CreateUser(username, email, hashedPassword string) (string, error) {
	newID := uuid.NewString()
	record := diskUser{
		ID:           newID,
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC().Unix(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(username)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userKey(username), data); err != nil {
			return err
		}
		return txn.Set(userIDKey(newID), []byte(username))
	})

	return newID, err
}

func (u UserRepository) GetByUsername(username string) (User, error) {
	var record diskUser

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})

	if err == badger.ErrKeyNotFound {
		return User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}

	return toUser(record), nil
}

func (u UserRepository) GetByID(id string) (User, error) {
	var username string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			username = string(val)
			return nil
		})
	})

	if err == badger.ErrKeyNotFound {
		return User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}

	return u.GetByUsername(username)
}

// ListUsers returns all accounts in the directory, in key order (username).
func (u UserRepository) ListUsers() ([]User, error) {
	var users []User
	err := u.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("user:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record diskUser
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				users = append(users, toUser(record))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return users, err
}

func toUser(record diskUser) User {
	return User{
		ID:           record.ID,
		Username:     record.Username,
		Email:        record.Email,
		PasswordHash: record.PasswordHash,
		CreatedAt:    time.Unix(record.CreatedAt, 0).UTC(),
	}
}

package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-core/domain"
	"chat-core/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IRoomRepository interface {
	CreateRoom(creator domain.Identity, memberIDs []string, name string, isGroup bool) (domain.Room, error)
	GetRoom(id int64) (domain.Room, error)
	IsMember(roomID int64, userID string) (bool, error)
	AddMember(roomID int64, userID string) (domain.Room, error)
	RemoveMember(roomID int64, userID string) (domain.Room, error)
	ListRoomsForUser(userID string) ([]domain.Room, error)
}

// RoomRepository is the durable room-to-participants mapping. It needs the
// user directory to resolve member ids on creation.
type RoomRepository struct {
	db    *badger.DB
	users IUserRepository
	log   *slog.Logger
	seq   *badger.Sequence
}

func NewRoomRepository(db *badger.DB, users IUserRepository, log *slog.Logger) (*RoomRepository, error) {
	seq, err := db.GetSequence([]byte("seq:room"), 16)
	if err != nil {
		return nil, fmt.Errorf("room sequence: %w", err)
	}
	return &RoomRepository{db: db, users: users, log: log, seq: seq}, nil
}

func (r *RoomRepository) Close() error {
	return r.seq.Release()
}

type diskRoom struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name,omitempty"`
	IsGroup   bool     `json:"is_group"`
	Members   []string `json:"members"`
	CreatedBy string   `json:"created_by"`
	CreatedAt int64    `json:"created_at"`
}

func roomKey(id int64) []byte {
	return []byte(fmt.Sprintf("room:%019d", id))
}

// CreateRoom persists a new room. The creator is always a member, even when
// omitted from memberIDs. Member ids that do not resolve to a known user are
// silently skipped rather than failing the whole operation.
func (r *RoomRepository) CreateRoom(creator domain.Identity, memberIDs []string, name string, isGroup bool) (domain.Room, error) {
	members := []string{creator.ID}
	for _, id := range memberIDs {
		if id == creator.ID || lo.Contains(members, id) {
			continue
		}
		if _, err := r.users.GetByID(id); err != nil {
			r.log.Debug("Skipping unknown member", "user_id", id)
			continue
		}
		members = append(members, id)
	}

	next, err := r.seq.Next()
	if err != nil {
		return domain.Room{}, fmt.Errorf("room id: %w", err)
	}

	record := diskRoom{
		ID:        int64(next) + 1,
		Name:      name,
		IsGroup:   isGroup,
		Members:   members,
		CreatedBy: creator.ID,
		CreatedAt: time.Now().UTC().Unix(),
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return domain.Room{}, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(record.ID), payload)
	})
	if err != nil {
		return domain.Room{}, err
	}

	return toRoom(record), nil
}

func (r *RoomRepository) GetRoom(id int64) (domain.Room, error) {
	var record diskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		return loadRoom(txn, id, &record)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return toRoom(record), nil
}

func loadRoom(txn *badger.Txn, id int64, record *diskRoom) error {
	item, err := txn.Get(roomKey(id))
	if err == badger.ErrKeyNotFound {
		return errors.ErrRoomNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, record)
	})
}

// IsMember answers the access-control query of the handshake. The creator
// counts as a member.
func (r *RoomRepository) IsMember(roomID int64, userID string) (bool, error) {
	room, err := r.GetRoom(roomID)
	if err != nil {
		return false, err
	}
	return room.HasMember(userID), nil
}

func (r *RoomRepository) AddMember(roomID int64, userID string) (domain.Room, error) {
	if _, err := r.users.GetByID(userID); err != nil {
		return domain.Room{}, err
	}
	return r.mutateRoom(roomID, func(record *diskRoom) error {
		if !lo.Contains(record.Members, userID) {
			record.Members = append(record.Members, userID)
		}
		return nil
	})
}

// RemoveMember drops a participant. The creator and the last remaining
// member cannot be removed; a room always keeps at least one member.
func (r *RoomRepository) RemoveMember(roomID int64, userID string) (domain.Room, error) {
	return r.mutateRoom(roomID, func(record *diskRoom) error {
		if userID == record.CreatedBy {
			return errors.ErrEmptyRoom
		}
		remaining := lo.Filter(record.Members, func(id string, _ int) bool {
			return id != userID
		})
		if len(remaining) == 0 {
			return errors.ErrEmptyRoom
		}
		record.Members = remaining
		return nil
	})
}

func (r *RoomRepository) mutateRoom(roomID int64, mutate func(*diskRoom) error) (domain.Room, error) {
	var record diskRoom
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := loadRoom(txn, roomID, &record); err != nil {
			return err
		}
		if err := mutate(&record); err != nil {
			return err
		}
		payload, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return txn.Set(roomKey(record.ID), payload)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return toRoom(record), nil
}

// ListRoomsForUser scans the room keyspace and keeps the rooms the user
// belongs to, in id order.
func (r *RoomRepository) ListRoomsForUser(userID string) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("room:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record diskRoom
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				room := toRoom(record)
				if room.HasMember(userID) {
					rooms = append(rooms, room)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rooms, err
}

func toRoom(record diskRoom) domain.Room {
	return domain.Room{
		ID:        domain.RoomID(record.ID),
		Name:      record.Name,
		IsGroup:   record.IsGroup,
		Members:   record.Members,
		CreatedBy: record.CreatedBy,
		CreatedAt: time.Unix(record.CreatedAt, 0).UTC(),
	}
}

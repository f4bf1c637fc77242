package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-core/domain"
	"chat-core/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	Append(room int64, sender domain.Identity, content string) (domain.Message, error)
	GetByID(messageID int64) (domain.Message, error)
	MarkRead(messageID int64, readerID string) (domain.Message, error)
	GetMessages(room int64, cursor *string) ([]domain.Message, *string, error)
	LastMessage(room int64) (*domain.Message, error)
	CountUnread(room int64, userID string) (int, error)
	MarkRoomRead(room int64, readerID string) (int, error)
}

// MessageRepository persists messages in BadgerDB.
//
// The primary key is "msg:{room_id}:{timestamp_padded}:{message_id}" so that
// a prefix scan over a room yields messages in chronological order (19-digit
// zero padding keeps the lexicographical and numeric orders aligned).
// A secondary key "msgidx:{message_id}" maps the numeric id back to the
// primary key for read-receipt lookups.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	seq           *badger.Sequence

	mu     sync.Mutex
	lastAt map[int64]int64 // room id -> last assigned unix nano

	writeMu sync.Mutex // serializes read-state updates
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 64)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{
		db:            db,
		log:           log,
		limitMessages: limitMessages,
		seq:           seq,
		lastAt:        make(map[int64]int64),
	}, nil
}

// Close releases the id sequence. Unreturned ids in the current lease are
// lost, which only leaves gaps in the numbering.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

type diskMessage struct {
	ID         int64    `json:"id"`
	Room       int64    `json:"room"`
	SenderID   string   `json:"sender_id"`
	SenderName string   `json:"sender_name"`
	Content    string   `json:"content"`
	At         int64    `json:"at"`
	ReadBy     []string `json:"read_by,omitempty"`
}

func messageKey(room, at, id int64) []byte {
	return []byte(fmt.Sprintf("msg:%d:%019d:%d", room, at, id))
}

func messageIndexKey(id int64) []byte {
	return []byte(fmt.Sprintf("msgidx:%019d", id))
}

func roomPrefix(room int64) []byte {
	return []byte(fmt.Sprintf("msg:%d:", room))
}

// nextTimestamp assigns a server-side timestamp that is strictly increasing
// within a room, even when two appends land in the same nanosecond.
func (m *MessageRepository) nextTimestamp(room int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := time.Now().UTC().UnixNano()
	if last, ok := m.lastAt[room]; ok && at <= last {
		at = last + 1
	}
	m.lastAt[room] = at
	return at
}

// Append assigns an id and a room-monotonic timestamp, then writes the
// message and its id index in one transaction.
func (m *MessageRepository) Append(room int64, sender domain.Identity, content string) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("message id: %w", err)
	}
	id := int64(next) + 1 // ids start at 1

	at := m.nextTimestamp(room)
	record := diskMessage{
		ID:         id,
		Room:       room,
		SenderID:   sender.ID,
		SenderName: sender.Username,
		Content:    content,
		At:         at,
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return domain.Message{}, err
	}

	key := messageKey(room, at, id)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, payload); err != nil {
			return err
		}
		return txn.Set(messageIndexKey(id), key)
	})
	if err != nil {
		return domain.Message{}, err
	}

	return toMessage(record), nil
}

func (m *MessageRepository) GetByID(messageID int64) (domain.Message, error) {
	var record diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		return m.loadByID(txn, messageID, &record)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(record), nil
}

func (m *MessageRepository) loadByID(txn *badger.Txn, messageID int64, record *diskMessage) error {
	item, err := txn.Get(messageIndexKey(messageID))
	if err == badger.ErrKeyNotFound {
		return errors.ErrMessageNotFound
	}
	if err != nil {
		return err
	}

	key, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}

	item, err = txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return errors.ErrMessageNotFound
	}
	if err != nil {
		return err
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, record)
	})
}

// MarkRead adds the reader to the message's read-by set. Re-marking by the
// same reader is a no-op, not an error. The sender is never added to their
// own set, whatever the caller asked for.
func (m *MessageRepository) MarkRead(messageID int64, readerID string) (domain.Message, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	var record diskMessage
	err := m.db.Update(func(txn *badger.Txn) error {
		if err := m.loadByID(txn, messageID, &record); err != nil {
			return err
		}

		if record.SenderID == readerID || lo.Contains(record.ReadBy, readerID) {
			return nil
		}

		record.ReadBy = append(record.ReadBy, readerID)
		payload, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return txn.Set(messageKey(record.Room, record.At, record.ID), payload)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(record), nil
}

// GetMessages retrieves messages for a room in timestamp order, oldest first.
// The cursor is the key suffix of the last message of the previous page; nil
// starts from the beginning. It stops once the configured limit is reached.
func (m *MessageRepository) GetMessages(room int64, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string

	prefix := roomPrefix(room)
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seekKey := prefix
		if cursor != nil {
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}
		it.Seek(seekKey)

		// The cursor points at an already-delivered message.
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				var record diskMessage
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				messages = append(messages, toMessage(record))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// LastMessage returns the newest message of a room, or nil when empty.
func (m *MessageRepository) LastMessage(room int64) (*domain.Message, error) {
	var found *domain.Message

	prefix := roomPrefix(room)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key, then step back into the prefix.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}

		return it.Item().Value(func(val []byte) error {
			var record diskMessage
			if err := json.Unmarshal(val, &record); err != nil {
				return err
			}
			found = lo.ToPtr(toMessage(record))
			return nil
		})
	})
	return found, err
}

// CountUnread counts messages in a room the given user has not read yet,
// excluding the user's own messages.
func (m *MessageRepository) CountUnread(room int64, userID string) (int, error) {
	count := 0
	err := m.forEachInRoom(room, func(record diskMessage) error {
		if record.SenderID != userID && !lo.Contains(record.ReadBy, userID) {
			count++
		}
		return nil
	})
	return count, err
}

// MarkRoomRead adds the reader to every unread message of the room that was
// sent by someone else, and reports how many messages changed.
func (m *MessageRepository) MarkRoomRead(room int64, readerID string) (int, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	changed := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := roomPrefix(room)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record diskMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}

			if record.SenderID == readerID || lo.Contains(record.ReadBy, readerID) {
				continue
			}

			record.ReadBy = append(record.ReadBy, readerID)
			payload, err := json.Marshal(record)
			if err != nil {
				return err
			}
			if err := txn.Set(messageKey(record.Room, record.At, record.ID), payload); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func (m *MessageRepository) forEachInRoom(room int64, fn func(diskMessage) error) error {
	return m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := roomPrefix(room)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record diskMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	})
}

func toMessage(record diskMessage) domain.Message {
	return domain.Message{
		ID:         record.ID,
		Room:       domain.RoomID(record.Room),
		SenderID:   record.SenderID,
		SenderName: record.SenderName,
		Content:    record.Content,
		At:         time.Unix(0, record.At).UTC(),
		IsRead:     len(record.ReadBy) > 0,
		ReadBy:     record.ReadBy,
	}
}

package services

import (
	"log/slog"
	"testing"

	"chat-core/domain"
	"chat-core/errors"
	"chat-core/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newRoomServiceFixture(t *testing.T) (*RoomService, repositories.IUserRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := repositories.NewUserRepository(db)
	rooms, err := repositories.NewRoomRepository(db, users, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rooms.Close() })

	return NewRoomService(rooms), users
}

func createIdentity(t *testing.T, users repositories.IUserRepository, username string) domain.Identity {
	t.Helper()
	id, err := users.CreateUser(username, username+"@example.com", "hash")
	require.NoError(t, err)
	return domain.Identity{ID: id, Username: username}
}

func Test_Access_Decisions(t *testing.T) {
	req := require.New(t)
	service, users := newRoomServiceFixture(t)
	creator := createIdentity(t, users, "alice")
	member := createIdentity(t, users, "bob")
	outsider := createIdentity(t, users, "mallory")

	room, err := service.CreateRoom(creator, []string{member.ID}, "private", false)
	req.NoError(err)

	// Members and the creator may join
	req.NoError(service.Access(int64(room.ID), creator.ID))
	req.NoError(service.Access(int64(room.ID), member.ID))

	// Outsiders are denied, unknown rooms are not found
	req.ErrorIs(service.Access(int64(room.ID), outsider.ID), errors.ErrAccessDenied)
	req.ErrorIs(service.Access(404, creator.ID), errors.ErrRoomNotFound)
}

func Test_Membership_Changes_Affect_Access(t *testing.T) {
	req := require.New(t)
	service, users := newRoomServiceFixture(t)
	creator := createIdentity(t, users, "alice")
	late := createIdentity(t, users, "bob")

	room, err := service.CreateRoom(creator, nil, "growing", true)
	req.NoError(err)

	req.ErrorIs(service.Access(int64(room.ID), late.ID), errors.ErrAccessDenied)

	_, err = service.AddMember(int64(room.ID), late.ID)
	req.NoError(err)
	req.NoError(service.Access(int64(room.ID), late.ID))

	_, err = service.RemoveMember(int64(room.ID), late.ID)
	req.NoError(err)
	req.ErrorIs(service.Access(int64(room.ID), late.ID), errors.ErrAccessDenied)
}

package repositories

import (
	"log/slog"
	"testing"

	"chat-core/domain"
	"chat-core/errors"

	"github.com/stretchr/testify/require"
)

type roomFixture struct {
	rooms *RoomRepository
	users IUserRepository
}

func newRoomFixture(t *testing.T) roomFixture {
	t.Helper()
	db := openTestDB(t)
	users := NewUserRepository(db)
	rooms, err := NewRoomRepository(db, users, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rooms.Close() })
	return roomFixture{rooms: rooms, users: users}
}

func (f roomFixture) createUser(t *testing.T, username string) domain.Identity {
	t.Helper()
	id, err := f.users.CreateUser(username, username+"@example.com", "hash")
	require.NoError(t, err)
	return domain.Identity{ID: id, Username: username}
}

func Test_CreateRoom_Creator_Is_Always_A_Member(t *testing.T) {
	req := require.New(t)
	f := newRoomFixture(t)
	creator := f.createUser(t, "alice")
	other := f.createUser(t, "bob")

	// When the creator is omitted from the member list
	room, err := f.rooms.CreateRoom(creator, []string{other.ID}, "pair", false)
	req.NoError(err)

	// Then the creator is still in
	req.Equal([]string{creator.ID, other.ID}, room.Members)
	req.Equal(creator.ID, room.CreatedBy)
	req.False(room.IsGroup)
	req.Positive(int64(room.ID))
}

func Test_CreateRoom_Skips_Unknown_Members(t *testing.T) {
	req := require.New(t)
	f := newRoomFixture(t)
	creator := f.createUser(t, "alice")
	known := f.createUser(t, "bob")

	// When the member list holds an id nobody owns
	room, err := f.rooms.CreateRoom(creator, []string{known.ID, "ghost"}, "team", true)

	// Then the room is created without the unknown id
	req.NoError(err)
	req.Equal([]string{creator.ID, known.ID}, room.Members)
}

func Test_CreateRoom_Deduplicates_Members(t *testing.T) {
	req := require.New(t)
	f := newRoomFixture(t)
	creator := f.createUser(t, "alice")
	other := f.createUser(t, "bob")

	room, err := f.rooms.CreateRoom(creator, []string{other.ID, other.ID, creator.ID}, "dup", true)
	req.NoError(err)
	req.Equal([]string{creator.ID, other.ID}, room.Members)
}

func Test_GetRoom_Unknown(t *testing.T) {
	f := newRoomFixture(t)

	_, err := f.rooms.GetRoom(404)
	require.ErrorIs(t, err, errors.ErrRoomNotFound)
}

func Test_IsMember(t *testing.T) {
	req := require.New(t)
	f := newRoomFixture(t)
	creator := f.createUser(t, "alice")
	member := f.createUser(t, "bob")
	outsider := f.createUser(t, "mallory")

	room, err := f.rooms.CreateRoom(creator, []string{member.ID}, "private", false)
	req.NoError(err)

	for _, tc := range []struct {
		userID string
		want   bool
	}{
		{creator.ID, true},
		{member.ID, true},
		{outsider.ID, false},
	} {
		got, err := f.rooms.IsMember(int64(room.ID), tc.userID)
		req.NoError(err)
		req.Equal(tc.want, got)
	}

	_, err = f.rooms.IsMember(404, creator.ID)
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func Test_AddMember(t *testing.T) {
	req := require.New(t)
	f := newRoomFixture(t)
	creator := f.createUser(t, "alice")
	late := f.createUser(t, "bob")

	room, err := f.rooms.CreateRoom(creator, nil, "solo", true)
	req.NoError(err)

	// Unknown users cannot be added
	_, err = f.rooms.AddMember(int64(room.ID), "ghost")
	req.ErrorIs(err, errors.ErrUserNotFound)

	room, err = f.rooms.AddMember(int64(room.ID), late.ID)
	req.NoError(err)
	req.Contains(room.Members, late.ID)

	// Adding twice keeps a single entry
	room, err = f.rooms.AddMember(int64(room.ID), late.ID)
	req.NoError(err)
	req.Len(room.Members, 2)
}

func Test_RemoveMember(t *testing.T) {
	req := require.New(t)
	f := newRoomFixture(t)
	creator := f.createUser(t, "alice")
	member := f.createUser(t, "bob")

	room, err := f.rooms.CreateRoom(creator, []string{member.ID}, "team", true)
	req.NoError(err)

	// The creator cannot be removed
	_, err = f.rooms.RemoveMember(int64(room.ID), creator.ID)
	req.ErrorIs(err, errors.ErrEmptyRoom)

	room, err = f.rooms.RemoveMember(int64(room.ID), member.ID)
	req.NoError(err)
	req.Equal([]string{creator.ID}, room.Members)
}

func Test_ListRoomsForUser(t *testing.T) {
	req := require.New(t)
	f := newRoomFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")

	first, err := f.rooms.CreateRoom(alice, []string{bob.ID}, "shared", false)
	req.NoError(err)
	_, err = f.rooms.CreateRoom(alice, nil, "alice only", true)
	req.NoError(err)

	bobRooms, err := f.rooms.ListRoomsForUser(bob.ID)
	req.NoError(err)
	req.Len(bobRooms, 1)
	req.Equal(first.ID, bobRooms[0].ID)

	aliceRooms, err := f.rooms.ListRoomsForUser(alice.ID)
	req.NoError(err)
	req.Len(aliceRooms, 2)
}

package services

import (
	"chat-core/domain"
	"chat-core/errors"
	"chat-core/repositories"
)

type IRoomService interface {
	CreateRoom(creator domain.Identity, memberIDs []string, name string, isGroup bool) (domain.Room, error)
	GetRoom(roomID int64) (domain.Room, error)
	RoomsForUser(userID string) ([]domain.Room, error)
	Access(roomID int64, userID string) error
	AddMember(roomID int64, userID string) (domain.Room, error)
	RemoveMember(roomID int64, userID string) (domain.Room, error)
}

// RoomService fronts the membership store with the access-control decision
// the gateway and the REST surface both rely on.
type RoomService struct {
	rooms repositories.IRoomRepository
}

func NewRoomService(rooms repositories.IRoomRepository) *RoomService {
	return &RoomService{rooms: rooms}
}

func (s *RoomService) CreateRoom(creator domain.Identity, memberIDs []string, name string, isGroup bool) (domain.Room, error) {
	return s.rooms.CreateRoom(creator, memberIDs, name, isGroup)
}

func (s *RoomService) GetRoom(roomID int64) (domain.Room, error) {
	return s.rooms.GetRoom(roomID)
}

func (s *RoomService) RoomsForUser(userID string) ([]domain.Room, error) {
	return s.rooms.ListRoomsForUser(userID)
}

// Access returns nil when the user may join the room, ErrRoomNotFound when
// the room does not exist, and ErrAccessDenied when the user is neither a
// member nor the creator.
func (s *RoomService) Access(roomID int64, userID string) error {
	member, err := s.rooms.IsMember(roomID, userID)
	if err != nil {
		return err
	}
	if !member {
		return errors.ErrAccessDenied
	}
	return nil
}

func (s *RoomService) AddMember(roomID int64, userID string) (domain.Room, error) {
	return s.rooms.AddMember(roomID, userID)
}

func (s *RoomService) RemoveMember(roomID int64, userID string) (domain.Room, error) {
	return s.rooms.RemoveMember(roomID, userID)
}

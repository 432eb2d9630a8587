package codec

import (
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/userd"
)

// UserProto encodes a userd.User as a protobuf google.protobuf.Struct.
// Readers in other languages can decode cached users with only the
// well-known types, no generated schema required.
type UserProto struct{}

// UserListProto encodes []userd.User as a google.protobuf.ListValue of Structs.
type UserListProto struct{}

var (
	_ Codec[userd.User]   = UserProto{}
	_ Codec[[]userd.User] = UserListProto{}
)

func (UserProto) Encode(u userd.User) ([]byte, error) {
	return proto.Marshal(userStruct(u))
}

func (UserProto) Decode(b []byte) (userd.User, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return userd.User{}, err
	}
	return structUser(&s)
}

func (UserListProto) Encode(us []userd.User) ([]byte, error) {
	lv := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(us))}
	for _, u := range us {
		lv.Values = append(lv.Values, structpb.NewStructValue(userStruct(u)))
	}
	return proto.Marshal(lv)
}

func (UserListProto) Decode(b []byte) ([]userd.User, error) {
	var lv structpb.ListValue
	if err := proto.Unmarshal(b, &lv); err != nil {
		return nil, err
	}
	out := make([]userd.User, 0, len(lv.Values))
	for i, v := range lv.Values {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("protobuf user list: element %d is not a struct", i)
		}
		u, err := structUser(s)
		if err != nil {
			return nil, fmt.Errorf("protobuf user list: element %d: %w", i, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func userStruct(u userd.User) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":    structpb.NewStringValue(u.ID.String()),
		"name":  structpb.NewStringValue(u.Name),
		"email": structpb.NewStringValue(u.Email),
	}}
}

func structUser(s *structpb.Struct) (userd.User, error) {
	f := s.GetFields()
	id, err := uuid.Parse(f["id"].GetStringValue())
	if err != nil {
		return userd.User{}, fmt.Errorf("protobuf user id: %w", err)
	}
	return userd.User{
		ID:    id,
		Name:  f["name"].GetStringValue(),
		Email: f["email"].GetStringValue(),
	}, nil
}

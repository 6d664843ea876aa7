package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Action
	}{
		{
			name: "create with name",
			raw:  `{"action":"create","body":"Game Night"}`,
			want: Create{Name: "Game Night"},
		},
		{
			name: "create with empty name",
			raw:  `{"action":"create","body":""}`,
			want: Create{Name: ""},
		},
		{
			name: "join",
			raw:  `{"action":"join","body":{"room_id":"ab12cd34"}}`,
			want: Join{RoomID: "ab12cd34"},
		},
		{
			name: "leave without body",
			raw:  `{"action":"leave"}`,
			want: Leave{},
		},
		{
			name: "leave ignores body",
			raw:  `{"action":"leave","body":{"anything":true}}`,
			want: Leave{},
		},
		{
			name: "message with string body",
			raw:  `{"action":"message","body":"hi"}`,
			want: Message{Body: json.RawMessage(`"hi"`)},
		},
		{
			name: "message with structured body",
			raw:  `{"action":"message","body":{"text":"hi","sent_at":1.5}}`,
			want: Message{Body: json.RawMessage(`{"text":"hi","sent_at":1.5}`)},
		},
		{
			name: "message without body",
			raw:  `{"action":"message"}`,
			want: Message{Body: json.RawMessage("null")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "empty frame", raw: ``, wantErr: ErrDecode},
		{name: "not json", raw: `hello`, wantErr: ErrDecode},
		{name: "json array", raw: `["create","x"]`, wantErr: ErrDecode},
		{name: "json string", raw: `"create"`, wantErr: ErrDecode},
		{name: "truncated object", raw: `{"action":"create"`, wantErr: ErrDecode},
		{name: "action wrong type", raw: `{"action":5}`, wantErr: ErrDecode},
		{name: "missing action", raw: `{"body":"x"}`, wantErr: ErrUnknownAction},
		{name: "unknown action", raw: `{"action":"dance"}`, wantErr: ErrUnknownAction},
		{name: "action is case sensitive", raw: `{"action":"CREATE","body":"x"}`, wantErr: ErrUnknownAction},
		{name: "create without body", raw: `{"action":"create"}`, wantErr: ErrDecode},
		{name: "create with null body", raw: `{"action":"create","body":null}`, wantErr: ErrDecode},
		{name: "create with object body", raw: `{"action":"create","body":{"name":"x"}}`, wantErr: ErrDecode},
		{name: "join without body", raw: `{"action":"join"}`, wantErr: ErrDecode},
		{name: "join with string body", raw: `{"action":"join","body":"ab12cd34"}`, wantErr: ErrDecode},
		{name: "join with empty room id", raw: `{"action":"join","body":{"room_id":""}}`, wantErr: ErrDecode},
		{name: "join with numeric room id", raw: `{"action":"join","body":{"room_id":7}}`, wantErr: ErrDecode},
		{name: "message with invalid utf8", raw: "{\"action\":\"message\",\"body\":\"\xff\xfe\"}", wantErr: ErrDecode},
		{name: "create with invalid utf8", raw: "{\"action\":\"create\",\"body\":\"caf\xe9\"}", wantErr: ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := Decode([]byte(tt.raw))
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, action)
		})
	}
}

func TestFramesEncodeToWireShape(t *testing.T) {
	welcome, err := json.Marshal(NewWelcome("ab12cd34"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"connected","client_id":"ab12cd34","message":"Welcome!"}`, string(welcome))

	ok, err := json.Marshal(Success("Left room", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","message":"Left room"}`, string(ok))

	created, err := json.Marshal(Success("Room 'x' created", "ef56ab78"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","message":"Room 'x' created","room_id":"ef56ab78"}`, string(created))

	at := time.Date(2024, 3, 9, 10, 11, 12, 0, time.FixedZone("X", 3600))
	frame, err := json.Marshal(NewBroadcast("ab12cd34", json.RawMessage(`{"n":1}`), at))
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"ab12cd34","body":{"n":1},"timestamp":"2024-03-09T09:11:12Z"}`, string(frame))
}

func TestDecodeBodyErrorDescribesAction(t *testing.T) {
	_, err := Decode([]byte(`{"action":"join","body":"ab12cd34"}`))

	var bodyErr *BodyError
	require.ErrorAs(t, err, &bodyErr)
	assert.Equal(t, KindJoin, bodyErr.Action)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Contains(t, err.Error(), "room_id")
}

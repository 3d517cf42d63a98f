package events_test

import (
	"testing"

	"typerace-realtime/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr bool
	}{
		{
			name:  "valid join",
			frame: `{"kind":"room:join","room_code":"ABC123"}`,
		},
		{
			name:  "valid progress",
			frame: `{"kind":"race:progress","room_code":"ABC123","typed":40,"total":250,"wpm":72.5,"accuracy":96}`,
		},
		{
			name:  "valid create",
			frame: `{"kind":"room:create","room_name":"friday night"}`,
		},
		{
			name:    "unknown kind rejected",
			frame:   `{"kind":"room:explode","room_code":"ABC123"}`,
			wantErr: true,
		},
		{
			name:    "join without room code",
			frame:   `{"kind":"room:join"}`,
			wantErr: true,
		},
		{
			name:    "kick without target",
			frame:   `{"kind":"room:kick","room_code":"ABC123"}`,
			wantErr: true,
		},
		{
			name:    "progress typed beyond total",
			frame:   `{"kind":"race:progress","room_code":"ABC123","typed":300,"total":250}`,
			wantErr: true,
		},
		{
			name:    "empty chat message",
			frame:   `{"kind":"chat:send","room_code":"ABC123","message":""}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			frame:   `{"kind":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := events.Decode([]byte(tt.frame))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, msg.Kind)
		})
	}
}

func TestSetTeamNilClearsTeam(t *testing.T) {
	msg, err := events.Decode([]byte(`{"kind":"room:setTeam","room_code":"ABC123","target_id":"u2","team":null}`))
	require.NoError(t, err)
	assert.Nil(t, msg.Team)

	msg, err = events.Decode([]byte(`{"kind":"room:setTeam","room_code":"ABC123","target_id":"u2","team":"red"}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Team)
	assert.Equal(t, "red", *msg.Team)
}

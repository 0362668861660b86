package types_test

import (
	"testing"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestMessageRole_IsValid(t *testing.T) {
	tests := []struct {
		name string
		role types.MessageRole
		want bool
	}{
		{
			name: "valid human",
			role: types.MessageRoleHuman,
			want: true,
		},
		{
			name: "valid ai",
			role: types.MessageRoleAI,
			want: true,
		},
		{
			name: "valid system",
			role: types.MessageRoleSystem,
			want: true,
		},
		{
			name: "invalid role",
			role: types.MessageRole("assistant"),
			want: false,
		},
		{
			name: "empty role",
			role: types.MessageRole(""),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want {
				gt.B(t, tt.role.IsValid()).True()
			} else {
				gt.B(t, tt.role.IsValid()).False()
			}
		})
	}
}

func TestParseMessageRole(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    types.MessageRole
		wantErr bool
	}{
		{
			name:    "valid human",
			input:   "human",
			want:    types.MessageRoleHuman,
			wantErr: false,
		},
		{
			name:    "valid ai",
			input:   "ai",
			want:    types.MessageRoleAI,
			wantErr: false,
		},
		{
			name:    "valid system",
			input:   "system",
			want:    types.MessageRoleSystem,
			wantErr: false,
		},
		{
			name:    "uppercase is not accepted",
			input:   "HUMAN",
			want:    "",
			wantErr: true,
		},
		{
			name:    "empty role",
			input:   "",
			want:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.ParseMessageRole(tt.input)
			if tt.wantErr {
				gt.Error(t, err)
			} else {
				gt.NoError(t, err)
				gt.V(t, got).Equal(tt.want)
			}
		})
	}
}

func TestAllMessageRoles(t *testing.T) {
	roles := types.AllMessageRoles()
	gt.A(t, roles).Length(3)

	for _, role := range roles {
		gt.B(t, role.IsValid()).
			Describef("Role %s should be valid", role).
			True()
	}
}

func TestMessageRole_String(t *testing.T) {
	gt.S(t, types.MessageRoleHuman.String()).Equal("human")
	gt.S(t, types.MessageRoleAI.String()).Equal("ai")
	gt.S(t, types.MessageRoleSystem.String()).Equal("system")
}

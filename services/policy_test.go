package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/utils"
)

func TestAuthorize(t *testing.T) {
	client := Caller{UserID: 1, Role: models.RoleClient}
	pro := Caller{UserID: 2, Role: models.RoleProfessional}
	otherPro := Caller{UserID: 3, Role: models.RoleProfessional}
	appointment := Resource{Kind: ResourceAppointment, OwnerID: 1, ProfessionalID: 2}

	tests := []struct {
		name   string
		caller Caller
		res    Resource
		action Action
		want   utils.ErrorKind
	}{
		{"anonymous", Caller{}, appointment, ActionRead, utils.KindUnauthorized},
		{"client owns appointment", client, appointment, ActionWrite, ""},
		{"professional of appointment", pro, appointment, ActionWrite, ""},
		{"unrelated professional", otherPro, appointment, ActionRead, utils.KindForbidden},
		{"client cannot read notes", client, Resource{Kind: ResourceNotes, OwnerID: 1, ProfessionalID: 2}, ActionRead, utils.KindForbidden},
		{"professional notes", pro, Resource{Kind: ResourceNotes, OwnerID: 1, ProfessionalID: 2}, ActionWrite, ""},
		{"anyone reads products", client, Resource{Kind: ResourceProduct, ProfessionalID: 2}, ActionRead, ""},
		{"client cannot edit products", client, Resource{Kind: ResourceProduct, ProfessionalID: 2}, ActionWrite, utils.KindForbidden},
		{"other professional cannot edit products", otherPro, Resource{Kind: ResourceProduct, ProfessionalID: 2}, ActionWrite, utils.KindForbidden},
		{"professional writes blog", otherPro, Resource{Kind: ResourceBlog}, ActionWrite, ""},
		{"client cannot use admin", client, Resource{Kind: ResourceAdmin}, ActionRead, utils.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.caller, tt.res, tt.action)
			if tt.want == "" {
				require.NoError(t, err)
				return
			}
			require.Equal(t, tt.want, utils.KindOf(err))
		})
	}
}

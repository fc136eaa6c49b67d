package employee

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"punchinout.com/punchinout/apperr"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/core/coretest"
	"punchinout.com/punchinout/model"
)

func TestDirectory(t *testing.T) {
	dm := coretest.New(t)
	dir := NewDirectory(dm, audit.NewStore(dm))
	ctx := context.Background()
	actor := audit.AdminActor(1)

	ada, err := dir.Create(ctx, actor, CreateInput{EmployeeCode: "E001", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, model.UserActive, ada.Status)

	_, err = dir.Create(ctx, actor, CreateInput{EmployeeCode: "E002", Name: "Bob", Status: model.UserDisabled})
	require.NoError(t, err)

	_, err = dir.Create(ctx, actor, CreateInput{EmployeeCode: "E001", Name: "Again"})
	assert.ErrorIs(t, err, apperr.ErrDuplicateEmployeeCode)

	_, err = dir.Create(ctx, actor, CreateInput{EmployeeCode: "E003", Name: "X", Status: "ON_LEAVE"})
	assert.Error(t, err)

	users, total, err := dir.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "E002", users[0].EmployeeCode)

	_, total, err = dir.List(ctx, ListFilter{Status: "ACTIVE"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	got, err := dir.Get(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	_, err = dir.Get(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}

func TestAttachFaceProfile(t *testing.T) {
	dm := coretest.New(t)
	dir := NewDirectory(dm, audit.NewStore(dm))
	ctx := context.Background()

	_, err := dir.Create(ctx, audit.SystemActor, CreateInput{EmployeeCode: "E001", Name: "Ada"})
	require.NoError(t, err)

	user, err := dir.AttachFaceProfile(ctx, "E001", "prof-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "prof-1", *user.FaceProfileID)

	user, err = dir.AttachFaceProfile(ctx, "UNKNOWN", "prof-2")
	require.NoError(t, err)
	assert.Nil(t, user)
}

package users

import (
	"context"
	"testing"

	"github.com/angelmondragon/residency-backend/pkg/db/dbtest"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryPromoteToMember(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Email: "User@Example.com", Name: "U", Role: enums.RoleUser}))
	require.NoError(t, repo.Create(ctx, &models.User{Email: "admin@example.com", Name: "A", Role: enums.RoleAdmin}))

	promoted, err := repo.PromoteToMember(ctx, "user@example.com", "U")
	require.NoError(t, err)
	assert.True(t, promoted)

	user, err := repo.FindByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, enums.RoleMember, user.Role)

	promoted, err = repo.PromoteToMember(ctx, "admin@example.com", "A")
	require.NoError(t, err)
	assert.False(t, promoted)
	admin, err := repo.FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, admin.Role)

	promoted, err = repo.PromoteToMember(ctx, "fresh@example.com", "Fresh")
	require.NoError(t, err)
	assert.True(t, promoted)
	fresh, err := repo.FindByEmail(ctx, "fresh@example.com")
	require.NoError(t, err)
	assert.Equal(t, enums.RoleMember, fresh.Role)
}

func TestRepositoryListAndCount(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	for _, u := range []models.User{
		{Email: "b@example.com", Name: "B", Role: enums.RoleMember},
		{Email: "a@example.com", Name: "A", Role: enums.RoleMember},
		{Email: "c@example.com", Name: "C", Role: enums.RoleUser},
	} {
		u := u
		require.NoError(t, repo.Create(ctx, &u))
	}

	member := enums.RoleMember
	members, err := repo.List(ctx, &member)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "a@example.com", members[0].Email)

	counts, err := repo.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[enums.RoleMember])
	assert.Equal(t, int64(1), counts[enums.RoleUser])

	rows, err := repo.TransitionRole(ctx, "c@example.com", enums.RoleMember, enums.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	rows, err = repo.Delete(ctx, "c@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
}

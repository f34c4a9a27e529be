package contact

import (
    "context"
    "testing"

    "github.com/google/uuid"
    "github.com/stretchr/testify/require"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/storage/memory"
)

func TestContactLifecycle(t *testing.T) {
    ctx := context.Background()
    svc := New(memory.New())
    org := uuid.New()

    c, err := svc.Create(ctx, CreateInput{OrganizationID: org, Name: " Ada Donor ", Email: "ada@example.org", Actor: "alice"})
    require.NoError(t, err)
    require.Equal(t, "Ada Donor", c.Name)

    email := "ada@new.example.org"
    up, err := svc.Update(ctx, org, c.ID, Updates{Email: &email}, "bob")
    require.NoError(t, err)
    require.Equal(t, email, up.Email)
    require.Equal(t, c.VersionID, *up.PreviousVersionID)

    list, err := svc.List(ctx, org)
    require.NoError(t, err)
    require.Len(t, list, 1)

    _, err = svc.Get(ctx, uuid.New(), c.ID)
    require.ErrorIs(t, err, errs.ErrNotFound)

    require.NoError(t, svc.Delete(ctx, org, c.ID, "bob"))
    _, err = svc.Get(ctx, org, c.ID)
    require.ErrorIs(t, err, errs.ErrNotFound)
    hist, err := svc.History(ctx, org, c.ID)
    require.NoError(t, err)
    require.Len(t, hist, 3)
    require.True(t, hist[0].IsDeleted)
}

func TestContactValidation(t *testing.T) {
    svc := New(memory.New())
    _, err := svc.Create(context.Background(), CreateInput{OrganizationID: uuid.New(), Name: ""})
    require.ErrorIs(t, err, errs.ErrInvalid)
    _, err = svc.Create(context.Background(), CreateInput{OrganizationID: uuid.New(), Name: "x", Email: "not-an-email"})
    require.ErrorIs(t, err, errs.ErrInvalid)
}

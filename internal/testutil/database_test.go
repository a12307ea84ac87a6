package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTestDB_SeedsProfiles(t *testing.T) {
	db := SetupTestDB(t, PhoneProfile())

	profile := db.MustProfile("iPhone deals")
	assert.Positive(t, profile.ID)

	stored, err := db.Storage.ListProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "iphone,128gb", stored[0].Keywords)
}

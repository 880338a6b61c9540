package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	a, err := Parse(" 42 ", "Customer")
	require.NoError(t, err)
	assert.Equal(t, Actor{AccountID: 42, Role: RoleCustomer}, a)
	assert.True(t, a.IsCustomer())

	seller, err := Parse("7", "seller")
	require.NoError(t, err)
	assert.False(t, seller.IsCustomer())

	for _, tc := range []struct{ id, role string }{
		{"", "customer"},
		{"abc", "customer"},
		{"-1", "customer"},
		{"1", "guest"},
	} {
		_, err := Parse(tc.id, tc.role)
		assert.Error(t, err, "id=%q role=%q", tc.id, tc.role)
	}
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithContext(context.Background(), Actor{AccountID: 3, Role: RoleMaster})
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.AccountID)
	assert.Equal(t, RoleMaster, got.Role)
}

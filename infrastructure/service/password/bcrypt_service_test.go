package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptPasswordService(t *testing.T) {
	service := NewBcryptPasswordService(bcrypt.MinCost)

	t.Run("HashPassword", func(t *testing.T) {
		hash, err := service.HashPassword("Secret#123")
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, "Secret#123", hash)
	})

	t.Run("HashEmptyPassword", func(t *testing.T) {
		_, err := service.HashPassword("")
		assert.ErrorIs(t, err, ErrEmptyPassword)
	})

	t.Run("HashIsSalted", func(t *testing.T) {
		first, err := service.HashPassword("Secret#123")
		require.NoError(t, err)
		second, err := service.HashPassword("Secret#123")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("VerifyPassword", func(t *testing.T) {
		hash, err := service.HashPassword("Secret#123")
		require.NoError(t, err)

		ok, err := service.VerifyPassword("Secret#123", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("VerifyWrongPassword", func(t *testing.T) {
		hash, err := service.HashPassword("Secret#123")
		require.NoError(t, err)

		ok, err := service.VerifyPassword("Wrong#456", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("VerifyCorruptHash", func(t *testing.T) {
		_, err := service.VerifyPassword("Secret#123", "not-a-bcrypt-hash")
		assert.Error(t, err)
	})

	t.Run("VerifyEmptyInput", func(t *testing.T) {
		_, err := service.VerifyPassword("", "hash")
		assert.ErrorIs(t, err, ErrEmptyPassword)
		_, err = service.VerifyPassword("password", "")
		assert.ErrorIs(t, err, ErrEmptyPassword)
	})
}

func TestNewBcryptPasswordService_CostFallback(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptPasswordService(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptPasswordService(99).cost)
	assert.Equal(t, 12, NewBcryptPasswordService(12).cost)
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateEmail tests the ValidateEmail function with valid and invalid emails.
func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("test@example.com"))
	assert.True(t, ValidateEmail("first.last+tag@sub.example.co"))
	assert.False(t, ValidateEmail("test@example"))
	assert.False(t, ValidateEmail("test@.com"))
	assert.False(t, ValidateEmail("test@."))
	assert.False(t, ValidateEmail(""))
}

// TestValidatePassword tests the ValidatePassword function with valid and invalid passwords.
func TestValidatePassword(t *testing.T) {
	assert.True(t, ValidatePassword("Test1234"))
	assert.False(t, ValidatePassword("test"))
	assert.False(t, ValidatePassword("Test"))
	assert.False(t, ValidatePassword("1234"))
	assert.False(t, ValidatePassword("T1234"))
	assert.False(t, ValidatePassword("passwordonly"))
	assert.False(t, ValidatePassword("12345678"))
}

// TestValidateDate tests the ValidateDate function with valid and invalid calendar days.
func TestValidateDate(t *testing.T) {
	assert.True(t, ValidateDate("2025-06-01"))
	assert.False(t, ValidateDate("2025-6-1"))
	assert.False(t, ValidateDate("01-06-2025"))
	assert.False(t, ValidateDate("2025-06-01T12:00:00Z"))
	assert.False(t, ValidateDate("yesterday"))
	assert.False(t, ValidateDate(""))
}

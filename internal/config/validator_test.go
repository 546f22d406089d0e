package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateLogLevel("debug"))
	assert.NoError(t, v.ValidateLogLevel("WARN"))
	assert.Error(t, v.ValidateLogLevel("verbose"))

	assert.NoError(t, v.ValidateIgnorePattern("**/node_modules/**"))
	assert.Error(t, v.ValidateIgnorePattern("{a,b"))

	assert.NoError(t, v.ValidateAddr("127.0.0.1:9464"))
	assert.NoError(t, v.ValidateAddr(":8080"))
	assert.Error(t, v.ValidateAddr("localhost"))
	assert.Error(t, v.ValidateAddr("localhost:http"))
	assert.Error(t, v.ValidateAddr("localhost:70000"))
	assert.Error(t, v.ValidateAddr(""))
}

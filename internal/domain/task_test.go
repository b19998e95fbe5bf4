package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusValid(t *testing.T) {
	for _, s := range TaskStatuses {
		assert.True(t, s.Valid(), "status %q", s)
	}
	for _, s := range []TaskStatus{"", "view", "InProgress", "Closed", "Done "} {
		assert.False(t, s.Valid(), "status %q", s)
	}
}

func TestAccessTokenActive(t *testing.T) {
	now := time.Now()
	tok := &AccessToken{ExpiresAt: now.Add(time.Minute)}
	assert.True(t, tok.Active(now))
	assert.False(t, tok.Active(now.Add(2*time.Minute)))

	revoked := now
	tok.RevokedAt = &revoked
	assert.False(t, tok.Active(now))
}

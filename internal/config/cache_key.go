package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionFingerprintKey returns the hash key holding the IP/UA recorded at login.
func (r *CacheKeyStruct) SessionFingerprintKey(sessionID string) string {
	return fmt.Sprintf("session:%s:fingerprint", sessionID)
}

// AuthorSessionsKey returns the set of session ids issued to an author.
func (r *CacheKeyStruct) AuthorSessionsKey(authorID int64) string {
	return fmt.Sprintf("author:%d:sessions", authorID)
}

// SecurityFeedChannel returns the Redis PubSub channel carrying live security events.
func (r *CacheKeyStruct) SecurityFeedChannel() string {
	return "security:events:feed"
}

var CacheKey = NewCacheKeyStruct()

package service

import (
	"fmt"

	"github.com/moby/locker"
)

// KeyedLocker serializes mutations of the same wallet or reward within this process.
type KeyedLocker struct {
	keys *locker.Locker
}

// NewKeyedLocker constructs an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{keys: locker.New()}
}

// Lock blocks until key is held and returns the matching unlock function.
func (l *KeyedLocker) Lock(key string) func() {
	l.keys.Lock(key)
	return func() {
		_ = l.keys.Unlock(key)
	}
}

func studentLockKey(studentID uint) string {
	return fmt.Sprintf("student:%d", studentID)
}

func rewardLockKey(rewardID uint) string {
	return fmt.Sprintf("reward:%d", rewardID)
}

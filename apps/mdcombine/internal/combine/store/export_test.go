package store

// HeldKeys exposes the number of tracked lock keys to tests.
func HeldKeys(l *LocalLocker) int { return l.held() }

package scheduling

import (
    "strconv"
    "sync"
)

// bucketLocks serializes the check-overlap-then-insert sequence per
// (venue, date) key so two concurrent RequestHold calls for the same slot
// cannot both pass the conflict check.  Locks are created on first use and
// dropped once no goroutine holds or waits on them, so the table stays
// small.  This guards a single process; the store's transactional overlap
// re-check covers multi-process deployments.
type bucketLocks struct {
    mu    sync.Mutex
    locks map[string]*bucketLock
}

type bucketLock struct {
    mu   sync.Mutex
    refs int
}

func newBucketLocks() *bucketLocks {
    return &bucketLocks{locks: make(map[string]*bucketLock)}
}

// acquire blocks until the lock for the key is held and returns the
// release function.
func (b *bucketLocks) acquire(venueID uint64, date string) func() {
    key := strconv.FormatUint(venueID, 10) + "@" + date

    b.mu.Lock()
    l, ok := b.locks[key]
    if !ok {
        l = &bucketLock{}
        b.locks[key] = l
    }
    l.refs++
    b.mu.Unlock()

    l.mu.Lock()
    return func() {
        l.mu.Unlock()
        b.mu.Lock()
        l.refs--
        if l.refs == 0 {
            delete(b.locks, key)
        }
        b.mu.Unlock()
    }
}

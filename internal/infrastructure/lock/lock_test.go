package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		inside  int32
		maxSeen int32
		counter int
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "account:1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			if n > atomic.LoadInt32(&maxSeen) {
				atomic.StoreInt32(&maxSeen, n)
			}
			counter++
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max holders = %d, want 1", maxSeen)
	}
	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if l.size() != 0 {
		t.Errorf("entries left = %d, want 0", l.size())
	}
}

func TestLocalLocker_DisjointKeys(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer releaseA()

	timeout, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	releaseB, err := l.Acquire(timeout, "b")
	if err != nil {
		t.Fatalf("different key should not block: %v", err)
	}
	releaseB()
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}

	release()
	release() // 重复释放无副作用
	if l.size() != 0 {
		t.Errorf("entries left = %d, want 0", l.size())
	}
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDistributedLock_OwnerOnlyUnlock(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	key := "market:test:lock:" + uuid.NewString()
	defer client.Del(ctx, key)

	owner := NewDistributedLock(client, key, "owner", 5*time.Second)
	other := NewDistributedLock(client, key, "other", 5*time.Second)

	ok, err := owner.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("owner TryLock = %v, %v", ok, err)
	}
	ok, err = other.TryLock(ctx)
	if err != nil || ok {
		t.Fatalf("second TryLock = %v, %v; want false", ok, err)
	}

	released, err := other.Unlock(ctx)
	if err != nil || released {
		t.Fatalf("non-owner unlock = %v, %v; want false", released, err)
	}
	released, err = owner.Unlock(ctx)
	if err != nil || !released {
		t.Fatalf("owner unlock = %v, %v; want true", released, err)
	}
}

func TestRedisLocker_Serializes(t *testing.T) {
	client := setupRedis(t)
	locker := NewRedisLocker(client, 5*time.Second)
	key := "market:test:lock:" + uuid.NewString()

	var (
		counter int
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), key)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			counter++
			release()
		}()
	}
	wg.Wait()

	if counter != 10 {
		t.Errorf("counter = %d, want 10", counter)
	}
}

package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ExampleDistributedLock demonstrates basic lock acquisition, extension and
// release around a critical section.
func ExampleDistributedLock() {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	config := &LockConfig{
		TTL:            30 * time.Second,
		MaxRetries:     3,
		RetryInterval:  100 * time.Millisecond,
		AcquireTimeout: 5 * time.Second,
		ReleaseTimeout: 2 * time.Second,
		ValuePrefix:    "example",
	}

	logger := slog.Default()

	lock := NewDistributedLock(client, "example_lock", config, logger)

	ctx := context.Background()

	acquired, err := lock.Acquire(ctx)
	if err != nil {
		logger.Error("Failed to acquire lock", "error", err)
		return
	}

	if !acquired {
		logger.Info("Lock already held by another process")
		return
	}

	logger.Info("Entering critical section")
	time.Sleep(2 * time.Second)

	err = lock.Extend(ctx, 60*time.Second)
	if err != nil {
		logger.Error("Failed to extend lock", "error", err)
	}

	logger.Info("Exiting critical section")

	err = lock.Release(ctx)
	if err != nil {
		logger.Error("Failed to release lock", "error", err)
	}
}

// ExampleLockManager demonstrates acquiring and releasing several named
// locks through a LockManager.
func ExampleLockManager() {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	manager := NewLockManager(client, nil, nil)

	ctx := context.Background()

	_, err := manager.AcquireLock(ctx, "resource_1")
	if err != nil {
		fmt.Printf("Failed to acquire lock1: %v\n", err)
		return
	}

	_, err = manager.AcquireLock(ctx, "resource_2")
	if err != nil {
		fmt.Printf("Failed to acquire lock2: %v\n", err)
		manager.ReleaseLock(ctx, "resource_1")
		return
	}

	fmt.Printf("Working with resources: %v\n", manager.ListLocks())

	err = manager.ReleaseAll(ctx)
	if err != nil {
		fmt.Printf("Failed to release locks: %v\n", err)
	}
}

// ExampleConcurrentProcessing demonstrates processing a batch of work items
// where a duplicate item ID is silently skipped if another instance already
// holds its lock.
func ExampleConcurrentProcessing() {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	manager := NewLockManager(client, nil, nil)
	ctx := context.Background()

	items := []string{"item_1", "item_2", "item_3", "item_1", "item_2"} // item_1 and item_2 appear twice

	for _, itemID := range items {
		lockKey := fmt.Sprintf("process_item_%s", itemID)

		_, err := manager.AcquireLock(ctx, lockKey)
		if err != nil {
			fmt.Printf("Item %s is already being processed by another instance\n", itemID)
			continue
		}

		fmt.Printf("Processing item: %s\n", itemID)
		time.Sleep(1 * time.Second)

		err = manager.ReleaseLock(ctx, lockKey)
		if err != nil {
			fmt.Printf("Failed to release lock for item %s: %v\n", itemID, err)
		}
	}
}

// ExamplePollerSingleFlight demonstrates the poller's single-flight pattern:
// only one instance advances the version map and dispatches listeners for a
// given poll cycle, extending the lock if the scroll runs long.
func ExamplePollerSingleFlight() {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	config := &LockConfig{
		TTL:            60 * time.Second,
		MaxRetries:     5,
		RetryInterval:  200 * time.Millisecond,
		AcquireTimeout: 10 * time.Second,
		ReleaseTimeout: 5 * time.Second,
		ValuePrefix:    "poller",
	}

	manager := NewLockManager(client, config, nil)
	ctx := context.Background()

	lockKey := "userstore:poll-cycle"

	lock, err := manager.AcquireLock(ctx, lockKey)
	if err != nil {
		fmt.Println("Poll cycle already in progress on another instance")
		return
	}

	fmt.Println("Scrolling and diffing the realm")

	time.Sleep(2 * time.Second)

	err = lock.Extend(ctx, 120*time.Second)
	if err != nil {
		fmt.Printf("Failed to extend lock: %v\n", err)
	}

	fmt.Println("Poll cycle complete")

	err = manager.ReleaseLock(ctx, lockKey)
	if err != nil {
		fmt.Printf("Failed to release lock: %v\n", err)
	}
}

// ExampleBatchProcessing demonstrates guarding a one-at-a-time batch job
// (such as a seed import) with a single named lock.
func ExampleBatchProcessing() {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	manager := NewLockManager(client, nil, nil)
	ctx := context.Background()

	_, err := manager.AcquireLock(ctx, "batch_processing")
	if err != nil {
		fmt.Println("Batch processing is already running")
		return
	}

	fmt.Println("Starting batch processing...")

	time.Sleep(5 * time.Second)

	fmt.Println("Batch processing completed")

	err = manager.ReleaseLock(ctx, "batch_processing")
	if err != nil {
		fmt.Printf("Failed to release batch lock: %v\n", err)
	}
}

// ExampleHealthCheck demonstrates inspecting the state of all locks a
// manager currently holds.
func ExampleHealthCheck() {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	manager := NewLockManager(client, nil, nil)
	ctx := context.Background()

	_, err1 := manager.AcquireLock(ctx, "health_check_1")
	_, err2 := manager.AcquireLock(ctx, "health_check_2")

	if err1 != nil || err2 != nil {
		fmt.Println("Failed to acquire locks for health check")
		return
	}

	fmt.Printf("Active locks: %v\n", manager.ListLocks())

	for _, lockKey := range manager.ListLocks() {
		lock, exists := manager.GetLock(lockKey)
		if exists {
			fmt.Printf("Lock %s: acquired=%v, ttl=%v\n",
				lockKey, lock.IsAcquired(), lock.GetTTL())
		}
	}

	err := manager.ReleaseAll(ctx)
	if err != nil {
		fmt.Printf("Failed to release all locks: %v\n", err)
	}
}

package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyHasPrefix(t *testing.T) {
	tests := []struct {
		key    Key
		prefix Key
		want   bool
	}{
		{NewKey("items", 0, 5), NewKey("items"), true},
		{NewKey("items", 0, 5), NewKey("items", 0), true},
		{NewKey("items", 0, 5), NewKey("items", 5), false},
		{NewKey("items"), NewKey("items", 0), false},
		{NewKey("itemsx", 0), NewKey("items"), false},
		{NewKey("users", 0, 5), Key{}, true},
	}
	for _, tt := range tests {
		if got := tt.key.HasPrefix(tt.prefix); got != tt.want {
			t.Errorf("%v.HasPrefix(%v) = %v, want %v", tt.key, tt.prefix, got, tt.want)
		}
	}
}

func TestFetchDeduplicatesConcurrentReads(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	fn := func(ctx context.Context) (int, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		return 42, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	errs := make([]error, n)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = Fetch(context.Background(), c, NewKey("items", 0, 5), fn)
	}()
	<-started
	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Fetch(context.Background(), c, NewKey("items", 0, 5), fn)
		}(i)
	}
	// Let the joiners reach the flight before it completes.
	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.waiters[NewKey("items", 0, 5).String()] == n
	})
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	for i := range results {
		if errs[i] != nil || results[i] != 42 {
			t.Errorf("caller %d got %d, %v", i, results[i], errs[i])
		}
	}
}

func TestFetchServesFreshEntries(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	var calls int
	fn := func(ctx context.Context) (string, error) {
		calls++
		return "v", nil
	}
	key := NewKey("auth", "me")
	for i := 0; i < 3; i++ {
		if _, err := Fetch(context.Background(), c, key, fn); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 while fresh", calls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := Fetch(context.Background(), c, key, fn); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 after going stale", calls)
	}
}

func TestFetchNoRetryByDefault(t *testing.T) {
	c := New(Options{})
	var calls int
	boom := errors.New("boom")
	_, err := Fetch(context.Background(), c, NewKey("items", 0, 5), func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if st := c.State(NewKey("items", 0, 5)); st.Status != StatusError || !errors.Is(st.Err, boom) {
		t.Errorf("state = %+v", st)
	}
}

func TestFetchRetries(t *testing.T) {
	c := New(Options{Retries: 2})
	var calls int
	v, err := Fetch(context.Background(), c, NewKey("users", 0, 5), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 7, nil
	})
	if err != nil || v != 7 {
		t.Fatalf("Fetch() = %d, %v", v, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestErrorsAreNotServedFromCache(t *testing.T) {
	c := New(Options{StaleTime: time.Hour})
	var calls int
	fn := func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("down")
		}
		return 1, nil
	}
	key := NewKey("health-check")
	if _, err := Fetch(context.Background(), c, key, fn); err == nil {
		t.Fatal("expected first read to fail")
	}
	if v, err := Fetch(context.Background(), c, key, fn); err != nil || v != 1 {
		t.Fatalf("second read = %d, %v", v, err)
	}
}

func TestInvalidateByPrefix(t *testing.T) {
	c := New(Options{StaleTime: time.Hour})
	count := 3
	itemsFn := func(ctx context.Context) (int, error) { return count, nil }
	usersCalls := 0
	usersFn := func(ctx context.Context) (int, error) { usersCalls++; return 1, nil }

	ctx := context.Background()
	for _, skip := range []int{0, 5} {
		if _, err := Fetch(ctx, c, NewKey("items", skip, 5), itemsFn); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := Fetch(ctx, c, NewKey("users", 0, 5), usersFn); err != nil {
		t.Fatal(err)
	}

	count = 4
	if removed := c.Invalidate(NewKey("items")); removed != 2 {
		t.Errorf("Invalidate() removed %d, want 2", removed)
	}
	for _, skip := range []int{0, 5} {
		v, err := Fetch(ctx, c, NewKey("items", skip, 5), itemsFn)
		if err != nil || v != 4 {
			t.Errorf("items skip=%d = %d, %v; want 4", skip, v, err)
		}
	}
	if _, err := Fetch(ctx, c, NewKey("users", 0, 5), usersFn); err != nil {
		t.Fatal(err)
	}
	if usersCalls != 1 {
		t.Errorf("users refetched %d times, want cached", usersCalls)
	}
}

func TestInvalidateDuringFlightDoesNotStoreStaleResult(t *testing.T) {
	c := New(Options{StaleTime: time.Hour})
	key := NewKey("items", 0, 5)
	release := make(chan struct{})
	started := make(chan struct{})

	done := make(chan int)
	go func() {
		v, _ := Fetch(context.Background(), c, key, func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- v
	}()
	<-started
	c.Invalidate(NewKey("items"))

	var fresh atomic.Int32
	v, err := Fetch(context.Background(), c, key, func(ctx context.Context) (int, error) {
		fresh.Add(1)
		return 2, nil
	})
	if err != nil || v != 2 {
		t.Fatalf("read after invalidate = %d, %v; want 2", v, err)
	}
	if fresh.Load() != 1 {
		t.Fatal("read after invalidate must not join the older call")
	}

	close(release)
	if old := <-done; old != 1 {
		t.Errorf("older read = %d, want 1", old)
	}
	if st := c.State(key); st.Value != 2 {
		t.Errorf("cached value = %v, want 2", st.Value)
	}
}

func TestFetchCanceledCallerStopsWaiting(t *testing.T) {
	c := New(Options{StaleTime: time.Hour})
	key := NewKey("auth", "me")
	release := make(chan struct{})
	started := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, key, func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "me", ctx.Err()
		})
		errc <- err
	}()
	<-started
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	close(release)
	waitFor(t, func() bool { return c.State(key).Status == StatusSuccess })
	if v := c.State(key).Value; v != "me" {
		t.Errorf("detached call stored %v", v)
	}
}

func TestSetDataResetAndState(t *testing.T) {
	c := New(Options{StaleTime: time.Hour})
	key := NewKey("auth", "me")

	if st := c.State(key); st.Status != StatusIdle {
		t.Errorf("initial status = %v", st.Status)
	}
	c.SetData(key, "seeded")
	v, err := Fetch(context.Background(), c, key, func(ctx context.Context) (string, error) {
		t.Error("seeded entry should be served without a call")
		return "", nil
	})
	if err != nil || v != "seeded" {
		t.Fatalf("Fetch() = %q, %v", v, err)
	}
	if st := c.State(key); st.Status != StatusSuccess {
		t.Errorf("status = %v, want success", st.Status)
	}

	c.Reset()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Reset", c.Len())
	}
	if st := c.State(key); st.Status != StatusIdle {
		t.Errorf("status after Reset = %v", st.Status)
	}
}

func TestFetchTypeMismatch(t *testing.T) {
	c := New(Options{StaleTime: time.Hour})
	key := NewKey("auth", "me")
	c.SetData(key, 5)
	if _, err := Fetch(context.Background(), c, key, func(ctx context.Context) (string, error) { return "", nil }); err == nil {
		t.Error("expected type mismatch error")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

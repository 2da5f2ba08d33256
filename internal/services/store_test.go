package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneytrack/internal/amqp"
	"moneytrack/internal/connectivity"
	"moneytrack/internal/core"
	remotemem "moneytrack/internal/remote/memory"
	"moneytrack/internal/storage"
)

// flakyRepo wraps a real repository and fails reads or writes on demand.
type flakyRepo struct {
	*storage.TransactionRepository
	mu       sync.Mutex
	readErr  error
	writeErr error
	writes   int
}

func newFlakyRepo() *flakyRepo {
	return &flakyRepo{TransactionRepository: storage.NewTransactionRepository(storage.NewMemoryKV())}
}

func (r *flakyRepo) ReadAll(ctx context.Context) ([]core.Transaction, error) {
	r.mu.Lock()
	err := r.readErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.TransactionRepository.ReadAll(ctx)
}

func (r *flakyRepo) WriteAll(ctx context.Context, txs []core.Transaction) error {
	r.mu.Lock()
	err := r.writeErr
	r.writes++
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.TransactionRepository.WriteAll(ctx, txs)
}

func (r *flakyRepo) stored(t *testing.T) []core.Transaction {
	t.Helper()
	txs, err := r.TransactionRepository.ReadAll(context.Background())
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	require.NoError(t, err)
	return txs
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, ev *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func tx(id core.ID, title string, amount float64) core.Transaction {
	return core.Transaction{ID: id, Title: title, Amount: amount, Date: "2024-01-01T00:00:00.000Z"}
}

func ids(txs []core.Transaction) []core.ID {
	out := make([]core.ID, len(txs))
	for i, t := range txs {
		out[i] = t.ID
	}
	return out
}

func TestAddThenLoadReturnsRecord(t *testing.T) {
	ctx := context.Background()
	repo := newFlakyRepo()
	s := NewTransactionStore(repo)

	added, err := s.Add(ctx, tx(1, "Food", 10))
	require.NoError(t, err)
	assert.False(t, added.IsSynced)

	page, err := s.Load(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, core.ID(1), page[0].ID)
	assert.Equal(t, page, s.Transactions())
}

func TestCreateStampsIDAndDate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	gen := core.NewIDGenerator(func() time.Time { return now })
	s := NewTransactionStore(newFlakyRepo(), WithIDGenerator(gen))

	first, err := s.Create(ctx, core.Draft{Title: " Food ", Amount: 10})
	require.NoError(t, err)
	second, err := s.Create(ctx, core.Draft{Title: "Gas", Amount: 20})
	require.NoError(t, err)

	assert.Equal(t, core.ID(now.UnixMilli()), first.ID)
	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, "Food", first.Title)
	assert.Equal(t, "2024-05-06T07:08:09.000Z", first.Date)

	_, err = s.Create(ctx, core.Draft{Title: "", Amount: 1})
	assert.ErrorIs(t, err, core.ErrEmptyTitle)
	assert.Equal(t, MsgAddFailed, s.LastError())
}

func TestLoadPaginationSizes(t *testing.T) {
	ctx := context.Background()
	repo := newFlakyRepo()
	s := NewTransactionStore(repo)
	const n = 7
	for i := 1; i <= n; i++ {
		_, err := s.Add(ctx, tx(core.ID(i), "t", 1))
		require.NoError(t, err)
	}

	for _, limit := range []int{1, 2, 3, 7, 10} {
		for page := 1; page <= 5; page++ {
			t.Run(fmt.Sprintf("page%d_limit%d", page, limit), func(t *testing.T) {
				got, err := s.Load(ctx, page, limit)
				require.NoError(t, err)
				want := min(limit, max(0, n-(page-1)*limit))
				require.Len(t, got, want)
				for i, rec := range got {
					assert.Equal(t, core.ID((page-1)*limit+i+1), rec.ID, "insertion order")
				}
				assert.Len(t, s.Transactions(), want, "memory holds exactly the page")
			})
		}
	}

	got, err := s.Load(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1, 2, 3}, ids(got), "page below 1 is the first page")

	got, err = s.Load(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, s.Transactions())
}

func TestLoadUsesCacheUntilMutation(t *testing.T) {
	ctx := context.Background()
	repo := newFlakyRepo()
	s := NewTransactionStore(repo)
	_, err := s.Add(ctx, tx(1, "Food", 10))
	require.NoError(t, err)

	_, err = s.Load(ctx, 1, 10)
	require.NoError(t, err)

	// storage now fails but the cached page still answers
	repo.readErr = errors.New("disk gone")
	got, err := s.Load(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	repo.readErr = nil
	_, err = s.Add(ctx, tx(2, "Gas", 20))
	require.NoError(t, err)
	repo.readErr = errors.New("disk gone")

	got, err = s.Load(ctx, 1, 10)
	assert.Error(t, err, "mutation must invalidate the cache")
	assert.Empty(t, got)
	assert.Equal(t, MsgLoadFailed, s.LastError())
}

func TestLoadFallsBackToRemote(t *testing.T) {
	ctx := context.Background()
	rem := remotemem.New(tx(10, "Food", 10), tx(11, "Gas", 20), tx(12, "Food", 5))

	t.Run("no local key", func(t *testing.T) {
		s := NewTransactionStore(newFlakyRepo(), WithRemote(rem))
		got, err := s.Load(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, []core.ID{10, 11}, ids(got))
	})

	t.Run("local read failure", func(t *testing.T) {
		repo := newFlakyRepo()
		repo.readErr = errors.New("corrupt")
		s := NewTransactionStore(repo, WithRemote(rem))
		got, err := s.Load(ctx, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, []core.ID{12}, ids(got))
	})

	t.Run("offline skips remote", func(t *testing.T) {
		s := NewTransactionStore(newFlakyRepo(), WithRemote(rem), WithChecker(connectivity.Static(false)))
		got, err := s.Load(ctx, 1, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Empty(t, s.LastError(), "a first run with no data is not an error")
	})

	t.Run("local key present wins", func(t *testing.T) {
		repo := newFlakyRepo()
		require.NoError(t, repo.WriteAll(ctx, []core.Transaction{}))
		s := NewTransactionStore(repo, WithRemote(rem))
		before := rem.Calls("list")
		got, err := s.Load(ctx, 1, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, before, rem.Calls("list"))
	})
}

func TestLoadTotalFailure(t *testing.T) {
	ctx := context.Background()
	repo := newFlakyRepo()
	repo.readErr = errors.New("disk gone")
	rem := remotemem.New()
	rem.FailWith(errors.New("network down"))
	s := NewTransactionStore(repo, WithRemote(rem))

	got, err := s.Load(ctx, 1, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Contains(t, err.Error(), "network down")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, MsgLoadFailed, s.LastError())

	s.ClearError()
	assert.Empty(t, s.LastError())
}

func TestAddOnlineStoresServerCopy(t *testing.T) {
	ctx := context.Background()
	repo := newFlakyRepo()
	rem := remotemem.New()
	s := NewTransactionStore(repo, WithRemote(rem))

	got, err := s.Add(ctx, tx(1, "Food", 10))
	require.NoError(t, err)
	assert.True(t, got.IsSynced)
	assert.Len(t, rem.Items(), 1)

	stored := repo.stored(t)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].IsSynced)
}

func TestAddOfflineOrRemoteFailureKeepsLocalCopy(t *testing.T) {
	ctx := context.Background()
	cases := map[string]func(*remotemem.Store) Option{
		"offline": func(*remotemem.Store) Option { return WithChecker(connectivity.Static(false)) },
		"remote failure": func(r *remotemem.Store) Option {
			r.FailWith(errors.New("network down"))
			return WithChecker(connectivity.Static(true))
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			repo := newFlakyRepo()
			rem := remotemem.New()
			s := NewTransactionStore(repo, WithRemote(rem), setup(rem))

			got, err := s.Add(ctx, tx(1, "Food", 10))
			require.NoError(t, err)
			assert.False(t, got.IsSynced)
			assert.Empty(t, rem.Items())

			stored := repo.stored(t)
			require.Len(t, stored, 1)
			assert.False(t, stored[0].IsSynced)
			assert.Equal(t, []core.ID{1}, ids(s.Transactions()))
			assert.Empty(t, s.LastError())
		})
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := NewTransactionStore(newFlakyRepo())
	_, err := s.Add(ctx, tx(1, "Food", 10))
	require.NoError(t, err)

	_, err = s.Add(ctx, tx(1, "Gas", 20))
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Len(t, s.Transactions(), 1)
}

func TestAddWriteFailureLeavesMemoryUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := newFlakyRepo()
	s := NewTransactionStore(repo)
	_, err := s.Add(ctx, tx(1, "Food", 10))
	require.NoError(t, err)

	repo.writeErr = errors.New("disk full")
	_, err = s.Add(ctx, tx(2, "Gas", 20))
	require.Error(t, err)
	assert.Equal(t, []core.ID{1}, ids(s.Transactions()))
	assert.Equal(t, MsgAddFailed, s.LastError())
	assert.Len(t, repo.stored(t), 1)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("add then delete", func(t *testing.T) {
		repo := newFlakyRepo()
		s := NewTransactionStore(repo)
		_, _ = s.Add(ctx, tx(1, "Food", 10))
		_, _ = s.Add(ctx, tx(2, "Gas", 20))

		require.NoError(t, s.Delete(ctx, 1))
		assert.Equal(t, []core.ID{2}, ids(repo.stored(t)))
		assert.Equal(t, []core.ID{2}, ids(s.Transactions()))
	})

	t.Run("absent id is a no-op", func(t *testing.T) {
		repo := newFlakyRepo()
		s := NewTransactionStore(repo)
		_, _ = s.Add(ctx, tx(1, "Food", 10))
		writes := repo.writes

		require.NoError(t, s.Delete(ctx, 99))
		assert.Equal(t, []core.ID{1}, ids(repo.stored(t)))
		assert.Equal(t, writes, repo.writes, "no rewrite for an absent id")
		assert.Empty(t, s.LastError())
	})

	t.Run("remote not found counts as deleted", func(t *testing.T) {
		repo := newFlakyRepo()
		rem := remotemem.New()
		s := NewTransactionStore(repo, WithRemote(rem), WithChecker(connectivity.Static(false)))
		_, _ = s.Add(ctx, tx(1, "Food", 10))

		s2 := NewTransactionStore(repo, WithRemote(rem))
		require.NoError(t, s2.Delete(ctx, 1))
		assert.Equal(t, 1, rem.Calls("delete"))
	})

	t.Run("remote failure keeps local deletion", func(t *testing.T) {
		repo := newFlakyRepo()
		rem := remotemem.New()
		s := NewTransactionStore(repo, WithRemote(rem))
		_, _ = s.Add(ctx, tx(1, "Food", 10))

		rem.FailWith(errors.New("network down"))
		err := s.Delete(ctx, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "network down")
		assert.Empty(t, repo.stored(t), "local step is not rolled back")
		assert.Equal(t, MsgDeleteFailed, s.LastError())
	})

	t.Run("local failure still deletes remotely", func(t *testing.T) {
		repo := newFlakyRepo()
		rem := remotemem.New()
		s := NewTransactionStore(repo, WithRemote(rem))
		_, _ = s.Add(ctx, tx(1, "Food", 10))

		repo.writeErr = errors.New("disk full")
		err := s.Delete(ctx, 1)
		require.Error(t, err)
		assert.Empty(t, rem.Items())
		assert.Equal(t, []core.ID{1}, ids(s.Transactions()))
	})

	t.Run("offline skips remote", func(t *testing.T) {
		repo := newFlakyRepo()
		rem := remotemem.New()
		toggle := connectivity.NewToggle(true)
		s := NewTransactionStore(repo, WithRemote(rem), WithChecker(toggle))
		_, _ = s.Add(ctx, tx(1, "Food", 10))

		toggle.Set(false)
		require.NoError(t, s.Delete(ctx, 1))
		assert.Len(t, rem.Items(), 1, "remote copy survives while offline")
		assert.Equal(t, 0, rem.Calls("delete"))
	})
}

func TestTotals(t *testing.T) {
	ctx := context.Background()
	s := NewTransactionStore(newFlakyRepo())
	_, _ = s.Add(ctx, tx(1, "Food", 10))
	_, _ = s.Add(ctx, tx(2, "Food", 5))
	_, _ = s.Add(ctx, tx(3, "Gas", 20))

	totals := s.Totals()
	require.Len(t, totals, 2)
	assert.Equal(t, "Food", totals[0].Title)
	assert.True(t, totals[0].Amount.Equal(decimalOf(15)))
	assert.Equal(t, "Gas", totals[1].Title)
	assert.True(t, totals[1].Amount.Equal(decimalOf(20)))
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	s := NewTransactionStore(newFlakyRepo())
	ch, cancel := s.Subscribe()

	_, err := s.Add(ctx, tx(1, "Food", 10))
	require.NoError(t, err)
	_, err = s.Add(ctx, tx(2, "Gas", 20))
	require.NoError(t, err)

	select {
	case snap := <-ch:
		assert.Equal(t, []core.ID{1, 2}, ids(snap), "slow readers get the latest snapshot")
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	_, err = s.Add(ctx, tx(3, "Gas", 1))
	require.NoError(t, err, "notifying after cancel must not panic")
}

func TestPublishesEvents(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := NewTransactionStore(newFlakyRepo(), WithPublisher(pub))

	_, err := s.Add(ctx, tx(1, "Food", 10))
	require.NoError(t, err, "publish failures are best effort")
	require.NoError(t, s.Delete(ctx, 1))
	require.NoError(t, s.Delete(ctx, 1))

	require.Len(t, pub.events, 2)
	assert.Equal(t, amqp.EventCreated, pub.events[0].Type)
	assert.Equal(t, amqp.EventDeleted, pub.events[1].Type)
	assert.Equal(t, core.ID(1), pub.events[1].ID)
}

func TestStatus(t *testing.T) {
	s := NewTransactionStore(newFlakyRepo())
	assert.Equal(t, Status{Online: true, Remote: "none"}, s.Status())

	s = NewTransactionStore(newFlakyRepo(), WithRemote(remotemem.New()), WithChecker(connectivity.Static(false)))
	assert.Equal(t, Status{Online: false, Remote: "memory"}, s.Status())
}

func TestConcurrentAddsDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	repo := newFlakyRepo()
	s := NewTransactionStore(repo)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := s.Add(ctx, tx(core.ID(id), "t", 1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, repo.stored(t), 20)
	assert.Len(t, s.Transactions(), 20)
}

func decimalOf(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// gatedRepo blocks the first ReadAll until release is closed.
type gatedRepo struct {
	*flakyRepo
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *gatedRepo) ReadAll(ctx context.Context) ([]core.Transaction, error) {
	all, err := r.flakyRepo.ReadAll(ctx)
	r.once.Do(func() {
		close(r.entered)
		<-r.release
	})
	return all, err
}

func TestLoadDuringAddDoesNotCacheStalePage(t *testing.T) {
	ctx := context.Background()
	base := newFlakyRepo()
	require.NoError(t, base.WriteAll(ctx, []core.Transaction{tx(1, "Seed", 1)}))
	repo := &gatedRepo{flakyRepo: base, entered: make(chan struct{}), release: make(chan struct{})}
	s := NewTransactionStore(repo)

	loaded := make(chan error, 1)
	go func() {
		_, err := s.Load(ctx, 1, 10)
		loaded <- err
	}()
	<-repo.entered

	added := make(chan error, 1)
	go func() {
		_, err := s.Add(ctx, tx(2, "Food", 5))
		added <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(repo.release)

	require.NoError(t, <-loaded)
	require.NoError(t, <-added)

	page, err := s.Load(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1, 2}, ids(page))
	assert.Equal(t, []core.ID{1, 2}, ids(s.Transactions()))
}

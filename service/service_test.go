package service_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/simple-item-server/record"
	"github.com/stevemurr/simple-item-server/service"
	"github.com/stevemurr/simple-item-server/store"
)

// failingStore fails Load and/or Save on demand and counts saves.
type failingStore struct {
	store.Store
	loadErr error
	saveErr error
	saves   int
}

func (f *failingStore) Load(ctx context.Context) ([]record.Item, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.Store.Load(ctx)
}

func (f *failingStore) Save(ctx context.Context, items []record.Item) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, items)
}

func seeded(t *testing.T, items ...record.Item) (*service.ItemService, *failingStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Save(context.Background(), items))
	fs := &failingStore{Store: mem}
	return service.New(fs), fs
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	svc, _ := seeded(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		it, err := svc.Create(ctx, record.Of("name", "n"+strconv.Itoa(i)))
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(i), it.ID())
	}

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 5)
	for i, it := range items {
		assert.Equal(t, strconv.Itoa(i+1), it.ID())
	}
}

func TestCreateOverwritesClientID(t *testing.T) {
	svc, _ := seeded(t, record.Of("id", "1", "name", "a"))

	it, err := svc.Create(context.Background(), record.Of("id", "99", "name", "b"))
	require.NoError(t, err)
	assert.Equal(t, "2", it.ID())
	assert.Equal(t, []string{"id", "name"}, it.Keys())
}

func TestCreateUsesLastItemNotMax(t *testing.T) {
	svc, _ := seeded(t,
		record.Of("id", "10"),
		record.Of("id", "3"),
	)
	it, err := svc.Create(context.Background(), record.New())
	require.NoError(t, err)
	assert.Equal(t, "4", it.ID())
}

func TestCreateNextID(t *testing.T) {
	tests := []struct {
		last    string
		want    string
		wantErr bool
	}{
		{last: "1", want: "2"},
		{last: "041", want: "42"},
		{last: "7abc", want: "8"},
		{last: " 5", want: "6"},
		{last: "-3", want: "-2"},
		{last: "9223372036854775806", want: "9223372036854775807"},
		{last: "9223372036854775807", wantErr: true},
		{last: "99999999999999999999", wantErr: true},
		{last: "abc", wantErr: true},
		{last: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.last, func(t *testing.T) {
			svc, fs := seeded(t, record.Of("id", tc.last))
			it, err := svc.Create(context.Background(), record.Of("name", "x"))
			if tc.wantErr {
				assert.ErrorIs(t, err, service.ErrBadID)
				assert.Zero(t, fs.saves)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, it.ID())
		})
	}
}

func TestCreateDoesNotMutateInput(t *testing.T) {
	svc, _ := seeded(t)
	fields := record.Of("name", "a")
	_, err := svc.Create(context.Background(), fields)
	require.NoError(t, err)
	_, ok := fields.Get("id")
	assert.False(t, ok)
}

func TestGet(t *testing.T) {
	svc, _ := seeded(t,
		record.Of("id", "1", "name", "a"),
		record.Of("id", "01", "name", "padded"),
		record.Of("id", "1", "name", "dup"),
	)
	ctx := context.Background()

	it, err := svc.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "a", it.Value("name"))

	it, err = svc.Get(ctx, "01")
	require.NoError(t, err)
	assert.Equal(t, "padded", it.Value("name"))

	_, err = svc.Get(ctx, "001")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("merges patch", func(t *testing.T) {
		svc, _ := seeded(t, record.Of("id", "1", "name", "a", "color", "red"))
		it, err := svc.Update(ctx, "1", record.Of("name", "c"))
		require.NoError(t, err)
		assert.True(t, record.Of("id", "1", "name", "c", "color", "red").Equal(it))

		got, err := svc.Get(ctx, "1")
		require.NoError(t, err)
		assert.True(t, it.Equal(got))
	})

	t.Run("empty patch returns item unchanged", func(t *testing.T) {
		svc, _ := seeded(t, record.Of("id", "1", "name", "a"))
		it, err := svc.Update(ctx, "1", record.New())
		require.NoError(t, err)
		assert.True(t, record.Of("id", "1", "name", "a").Equal(it))
	})

	t.Run("patch may change id", func(t *testing.T) {
		svc, _ := seeded(t, record.Of("id", "1"), record.Of("id", "2"))
		it, err := svc.Update(ctx, "1", record.Of("id", "2"))
		require.NoError(t, err)
		assert.Equal(t, "2", it.ID())

		items, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2", items[0].ID())
		assert.Equal(t, "2", items[1].ID())
	})

	t.Run("only first match is updated", func(t *testing.T) {
		svc, _ := seeded(t, record.Of("id", "1", "n", "a"), record.Of("id", "1", "n", "b"))
		_, err := svc.Update(ctx, "1", record.Of("n", "z"))
		require.NoError(t, err)
		items, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, "z", items[0].Value("n"))
		assert.Equal(t, "b", items[1].Value("n"))
	})

	t.Run("new field on non-first item is dropped on save", func(t *testing.T) {
		svc, _ := seeded(t, record.Of("id", "1", "name", "a"), record.Of("id", "2", "name", "b"))
		it, err := svc.Update(ctx, "2", record.Of("extra", "x"))
		require.NoError(t, err)
		assert.Equal(t, "x", it.Value("extra"))

		got, err := svc.Get(ctx, "2")
		require.NoError(t, err)
		_, ok := got.Get("extra")
		assert.False(t, ok)
	})

	t.Run("not found does not save", func(t *testing.T) {
		svc, fs := seeded(t, record.Of("id", "1"))
		_, err := svc.Update(ctx, "2", record.Of("name", "x"))
		assert.ErrorIs(t, err, service.ErrNotFound)
		assert.Zero(t, fs.saves)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes every match", func(t *testing.T) {
		svc, _ := seeded(t,
			record.Of("id", "1", "n", "a"),
			record.Of("id", "2", "n", "b"),
			record.Of("id", "1", "n", "c"),
			record.Of("id", "3", "n", "d"),
		)
		require.NoError(t, svc.Delete(ctx, "1"))
		items, err := svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "2", items[0].ID())
		assert.Equal(t, "3", items[1].ID())
	})

	t.Run("not found does not save", func(t *testing.T) {
		svc, fs := seeded(t, record.Of("id", "1"))
		assert.ErrorIs(t, svc.Delete(ctx, "01"), service.ErrNotFound)
		assert.Zero(t, fs.saves)
	})

	t.Run("deleting the last item leaves the store untouched", func(t *testing.T) {
		svc, _ := seeded(t, record.Of("id", "1", "name", "a"))
		require.NoError(t, svc.Delete(ctx, "1"))

		// An empty collection is never written, so the old row survives.
		items, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})
}

func TestStoreErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	ioErr := &store.IOError{Op: "read", Path: "data.csv", Err: errors.New("boom")}

	t.Run("load", func(t *testing.T) {
		svc, fs := seeded(t, record.Of("id", "1"))
		fs.loadErr = ioErr

		_, err := svc.List(ctx)
		assert.ErrorIs(t, err, ioErr)
		_, err = svc.Get(ctx, "1")
		assert.ErrorIs(t, err, ioErr)
		_, err = svc.Create(ctx, record.New())
		assert.ErrorIs(t, err, ioErr)
		_, err = svc.Update(ctx, "1", record.New())
		assert.ErrorIs(t, err, ioErr)
		assert.ErrorIs(t, svc.Delete(ctx, "1"), ioErr)
		assert.Zero(t, fs.saves)
	})

	t.Run("save", func(t *testing.T) {
		svc, fs := seeded(t, record.Of("id", "1"))
		fs.saveErr = ioErr

		_, err := svc.Create(ctx, record.New())
		assert.ErrorIs(t, err, ioErr)
		_, err = svc.Update(ctx, "1", record.Of("a", "b"))
		assert.ErrorIs(t, err, ioErr)
		assert.ErrorIs(t, svc.Delete(ctx, "1"), ioErr)

		fs.saveErr = nil
		items, err := svc.List(ctx)
		require.NoError(t, err)
		assert.True(t, record.Of("id", "1").Equal(items[0]))

		// The failed create left no trace, so a retry gets the same id.
		it, err := svc.Create(ctx, record.New())
		require.NoError(t, err)
		assert.Equal(t, "2", it.ID())
	})
}

func TestSerializeWritesKeepsIDsUnique(t *testing.T) {
	svc := service.New(store.NewMemoryStore(), service.SerializeWrites())
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, record.Of("name", "x"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, n)
	seen := map[string]bool{}
	for _, it := range items {
		assert.False(t, seen[it.ID()], "duplicate id %s", it.ID())
		seen[it.ID()] = true
	}
}

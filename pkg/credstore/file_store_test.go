package credstore

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*FileStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := NewFileStore(fs, "/data/users.json", nil)
	require.NoError(t, err)
	return store, fs
}

func TestFileStore_CreateAndFind(t *testing.T) {
	store, _ := newTestStore(t)

	user, err := store.Create("alice", "hash-1")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, 0, user.FailedAttempts)
	assert.Nil(t, user.LockedUntil)
	assert.Nil(t, user.LastLogin)
	assert.False(t, user.CreatedAt.IsZero())

	found, err := store.FindByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "hash-1", found.PasswordHash)

	byID, err := store.FindByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func TestFileStore_FindMisses(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.FindByUsername("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = store.FindByID("no-such-id")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFileStore_UsernamesAreCaseSensitive(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Create("Alice", "h")
	require.NoError(t, err)

	_, err = store.FindByUsername("alice")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// The lowercase variant is a different username
	_, err = store.Create("alice", "h")
	assert.NoError(t, err)
}

func TestFileStore_DuplicateUsername(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Create("alice", "h")
	require.NoError(t, err)

	_, err = store.Create("alice", "h2")
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestFileStore_Update(t *testing.T) {
	store, _ := newTestStore(t)

	user, err := store.Create("alice", "h")
	require.NoError(t, err)

	until := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	updated, err := store.Update(user.ID, func(u *User) {
		u.FailedAttempts = 3
		u.LockedUntil = &until
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.FailedAttempts)
	require.NotNil(t, updated.LockedUntil)
	assert.True(t, updated.LockedUntil.Equal(until))

	// The mutation persisted
	found, err := store.FindByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, found.FailedAttempts)

	_, err = store.Update("missing", func(u *User) {})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFileStore_ReturnsCopies(t *testing.T) {
	store, _ := newTestStore(t)

	user, err := store.Create("alice", "h")
	require.NoError(t, err)

	user.FailedAttempts = 99
	found, err := store.FindByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, 0, found.FailedAttempts)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewFileStore(fs, "/data/users.json", nil)
	require.NoError(t, err)

	user, err := store.Create("alice", "hash-1")
	require.NoError(t, err)

	lastLogin := time.Now().UTC().Truncate(time.Second)
	_, err = store.Update(user.ID, func(u *User) {
		u.FailedAttempts = 2
		u.LastLogin = &lastLogin
	})
	require.NoError(t, err)

	reopened, err := NewFileStore(fs, "/data/users.json", nil)
	require.NoError(t, err)

	found, err := reopened.FindByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "hash-1", found.PasswordHash)
	assert.Equal(t, 2, found.FailedAttempts)
	require.NotNil(t, found.LastLogin)
	assert.True(t, found.LastLogin.Equal(lastLogin))
}

func TestFileStore_UnknownFieldsRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	raw := `[{"id":"u-1","username":"alice","password_hash":"h","created_at":1700000000,
		"failed_attempts":0,"locked_until":null,"last_login":null,
		"display_name":"Alice Smith","roles":["ops","admin"]}]`
	require.NoError(t, afero.WriteFile(fs, "/users.json", []byte(raw), 0600))

	store, err := NewFileStore(fs, "/users.json", nil)
	require.NoError(t, err)

	// Force a save
	_, err = store.Update("u-1", func(u *User) { u.FailedAttempts = 1 })
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/users.json")
	require.NoError(t, err)

	var records []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.JSONEq(t, `"Alice Smith"`, string(records[0]["display_name"]))
	assert.JSONEq(t, `["ops","admin"]`, string(records[0]["roles"]))
	assert.JSONEq(t, `1`, string(records[0]["failed_attempts"]))
}

func TestFileStore_CorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/users.json", []byte("{not json"), 0600))

	_, err := NewFileStore(fs, "/users.json", nil)
	assert.ErrorIs(t, err, ErrCorruptStore)
}

func TestFileStore_MissingFileStartsEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewFileStore(fs, "/nope/users.json", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Count())
}

func TestFileStore_ConcurrentCreateSameUsername(t *testing.T) {
	store, _ := newTestStore(t)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Create("alice", fmt.Sprintf("hash-%d", i))
		}(i)
	}
	wg.Wait()

	var successes, duplicates int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case err == ErrDuplicateUser:
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, duplicates)
	assert.Equal(t, 1, store.Count())
}

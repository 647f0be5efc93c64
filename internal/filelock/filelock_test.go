package filelock

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockUnlock(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), "test.lock"))
	require.NoError(t, lock.Lock())
	require.NoError(t, lock.Unlock())
}

func TestTryLockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	first := New(path)
	second := New(path)

	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired, "held lock cannot be re-acquired")

	require.NoError(t, first.Unlock())

	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, second.Unlock())
}

func TestLockSerializesCriticalSection(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "counter.lock")
	counterPath := filepath.Join(dir, "counter.txt")
	require.NoError(t, os.WriteFile(counterPath, []byte("0"), 0644))

	const goroutines = 5
	const iterations = 10

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				lock := New(lockPath)
				require.NoError(t, lock.Lock())

				data, err := os.ReadFile(counterPath)
				require.NoError(t, err)
				var n int
				fmt.Sscanf(string(data), "%d", &n)
				require.NoError(t, os.WriteFile(counterPath, []byte(fmt.Sprintf("%d", n+1)), 0644))

				require.NoError(t, lock.Unlock())
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(counterPath)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d", goroutines*iterations), string(data))
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.NoError(t, AtomicWrite(path, []byte("first")))
	require.NoError(t, AtomicWrite(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestAtomicWriteCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.txt")
	require.NoError(t, AtomicWrite(path, []byte("nested")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nested", string(data))
}

func TestConcurrentLockAndWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	const goroutines = 10
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			assert.NoError(t, LockAndWrite(path, []byte{byte('A' + id)}))
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 1, "readers never see interleaved writes")
}

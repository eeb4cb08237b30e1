package imagestore_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/enviro-meter/firewatch/internal/adapters/imagestore"
	"github.com/enviro-meter/firewatch/internal/core/domain"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", name, err)
	}
}

func TestStore_FirstSaveIsNumberOne(t *testing.T) {
	store := imagestore.New(t.TempDir(), "/sentinel")

	img, err := store.Save(context.Background(), []byte("png-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Filename != "true-color-1.png" {
		t.Errorf("expected true-color-1.png, got %s", img.Filename)
	}
	if img.Sequence != 1 {
		t.Errorf("expected sequence 1, got %d", img.Sequence)
	}
	if img.URL != "/sentinel/true-color-1.png" {
		t.Errorf("expected public URL, got %s", img.URL)
	}
	if img.SizeBytes != int64(len("png-bytes")) {
		t.Errorf("expected size %d, got %d", len("png-bytes"), img.SizeBytes)
	}
}

func TestStore_GapsAreNotFilled(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "true-color-1.png")
	touch(t, dir, "true-color-3.png")

	store := imagestore.New(dir, "/sentinel")
	img, err := store.Save(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Filename != "true-color-4.png" {
		t.Errorf("expected max+1 = true-color-4.png, got %s", img.Filename)
	}
}

func TestStore_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "true-color-2.png")
	touch(t, dir, "notes.txt")
	touch(t, dir, "true-color-x.png")
	touch(t, dir, "true-color-10.jpeg")
	if err := os.Mkdir(filepath.Join(dir, "true-color-99.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	store := imagestore.New(dir, "/sentinel")
	img, err := store.Save(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Filename != "true-color-3.png" {
		t.Errorf("expected true-color-3.png, got %s", img.Filename)
	}

	images, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images) != 2 {
		t.Errorf("expected 2 matching files, got %d", len(images))
	}
}

func TestStore_CreatesDirectoryOnFirstSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "sentinel")
	store := imagestore.New(dir, "/sentinel")

	if _, err := store.Save(context.Background(), []byte("png")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "true-color-1.png")); err != nil {
		t.Errorf("expected file on disk: %v", err)
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	store := imagestore.New(dir, "/sentinel")
	for i := 0; i < 3; i++ {
		if _, err := store.Save(context.Background(), []byte("png")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	images, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(images))
	}
	for i, want := range []int{3, 2, 1} {
		if images[i].Sequence != want {
			t.Errorf("position %d: expected sequence %d, got %d", i, want, images[i].Sequence)
		}
	}
}

func TestStore_ListOnMissingDirIsEmpty(t *testing.T) {
	store := imagestore.New(filepath.Join(t.TempDir(), "never-created"), "/sentinel")
	images, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("expected no images, got %d", len(images))
	}
}

func TestStore_LatestOnEmptyDir(t *testing.T) {
	store := imagestore.New(t.TempDir(), "/sentinel")
	_, err := store.Latest(context.Background())
	if !errors.Is(err, domain.ErrNoCachedImages) {
		t.Errorf("expected ErrNoCachedImages, got %v", err)
	}
}

func TestStore_LatestPicksHighestSequence(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "true-color-2.png")
	touch(t, dir, "true-color-10.png")
	touch(t, dir, "true-color-9.png")

	store := imagestore.New(dir, "/sentinel")
	latest, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.Filename != "true-color-10.png" {
		t.Errorf("expected true-color-10.png, got %s", latest.Filename)
	}
}

func TestStore_ConcurrentSavesGetUniqueNames(t *testing.T) {
	store := imagestore.New(t.TempDir(), "/sentinel")

	const writers = 16
	var wg sync.WaitGroup
	names := make(chan string, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			img, err := store.Save(context.Background(), []byte(fmt.Sprintf("capture-%d", n)))
			if err != nil {
				t.Errorf("save %d: %v", n, err)
				return
			}
			names <- img.Filename
		}(i)
	}
	wg.Wait()
	close(names)

	seen := make(map[string]bool)
	for name := range names {
		if seen[name] {
			t.Errorf("duplicate filename %s", name)
		}
		seen[name] = true
	}
	if len(seen) != writers {
		t.Errorf("expected %d unique files, got %d", writers, len(seen))
	}
}

func TestStore_ExternalCollisionSkipsToFreeName(t *testing.T) {
	dir := t.TempDir()
	store := imagestore.New(dir, "/sentinel")
	if _, err := store.Save(context.Background(), []byte("png")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate an external writer grabbing the next name.
	touch(t, dir, "true-color-2.png")

	img, err := store.Save(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Filename != "true-color-3.png" {
		t.Errorf("expected collision to advance to true-color-3.png, got %s", img.Filename)
	}
}

func TestStore_UnwritableDirIsPersistenceError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not bind as root")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	store := imagestore.New(dir, "/sentinel")
	_, err := store.Save(context.Background(), []byte("png"))

	var persist *domain.PersistenceError
	if !errors.As(err, &persist) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}

func TestStore_Check(t *testing.T) {
	store := imagestore.New(filepath.Join(t.TempDir(), "fresh"), "/sentinel")
	if err := store.Check(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

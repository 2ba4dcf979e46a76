package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/famish99/deckd/internal/decoder"
	"github.com/famish99/deckd/internal/logging"
)

// DecodeFunc decodes the audio at source into a WAV file at dest
type DecodeFunc func(ctx context.Context, source, dest string) error

// Entry represents a cache entry
type Entry struct {
	Key     string
	Path    string
	Size    int64
	element *list.Element
}

// DiskCache is an LRU cache of decoded tracks that persists across sessions
type DiskCache struct {
	mu          sync.Mutex
	cacheDir    string
	maxSize     int64
	currentSize int64
	logger      *log.Logger
	client      *http.Client

	// LRU tracking
	entries map[string]*Entry
	lru     *list.List

	// Prevents concurrent decodes of the same URL
	decodeLocks sync.Map // map[string]*sync.Mutex
}

// NewDiskCache creates a new disk-based LRU cache.
// Existing files in cacheDir are loaded on startup.
func NewDiskCache(cacheDir string, maxSizeBytes int64, logger *log.Logger) (*DiskCache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	logger = logging.OrDefault(logger)

	c := &DiskCache{
		cacheDir: cacheDir,
		maxSize:  maxSizeBytes,
		logger:   logger,
		client:   http.DefaultClient,
		entries:  make(map[string]*Entry),
		lru:      list.New(),
	}

	if err := c.scan(); err != nil {
		return nil, fmt.Errorf("failed to scan cache: %w", err)
	}

	return c, nil
}

// scan loads existing cache entries from disk. Leftover temp files from an
// interrupted decode are removed.
func (c *DiskCache) scan() error {
	return filepath.Walk(c.cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		if filepath.Ext(path) == ".tmp" {
			os.Remove(path)
			return nil
		}

		// Files are named by key hash
		key := filepath.Base(path)

		entry := &Entry{
			Key:  key,
			Path: path,
			Size: info.Size(),
		}
		entry.element = c.lru.PushBack(entry)
		c.entries[key] = entry
		c.currentSize += info.Size()

		return nil
	})
}

func hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// PathForKey returns the filesystem path a key is cached at
func (c *DiskCache) PathForKey(key string) string {
	return filepath.Join(c.cacheDir, hashKey(key))
}

// Contains reports whether key is cached, marking it recently used
func (c *DiskCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[hashKey(key)]
	if ok {
		c.lru.MoveToFront(entry.element)
	}
	return ok
}

// RegisterFile registers the file at PathForKey(key) into the cache,
// evicting least recently used entries to make room.
func (c *DiskCache) RegisterFile(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := hashKey(key)
	if entry, exists := c.entries[hash]; exists {
		c.lru.MoveToFront(entry.element)
		return nil
	}

	path := c.PathForKey(key)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat cache file: %w", err)
	}
	fileSize := info.Size()

	for c.currentSize+fileSize > c.maxSize && c.lru.Len() > 0 {
		c.evictOldest()
	}

	entry := &Entry{
		Key:  hash,
		Path: path,
		Size: fileSize,
	}
	entry.element = c.lru.PushFront(entry)
	c.entries[hash] = entry
	c.currentSize += fileSize

	return nil
}

// evictOldest removes the least recently used entry
func (c *DiskCache) evictOldest() {
	element := c.lru.Back()
	if element == nil {
		return
	}

	entry := element.Value.(*Entry)
	c.lru.Remove(element)
	delete(c.entries, entry.Key)
	c.currentSize -= entry.Size

	os.Remove(entry.Path)
	c.logger.Debug("evicted cache entry", "hash", entry.Key, "size", entry.Size)
}

// Invalidate removes a cache entry both from memory and disk.
// Use this when a cached file turns out to be corrupt.
func (c *DiskCache) Invalidate(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := hashKey(key)
	entry, exists := c.entries[hash]
	if !exists {
		return nil
	}

	delete(c.entries, hash)
	c.lru.Remove(entry.element)
	c.currentSize -= entry.Size

	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}

	c.logger.Info("invalidated cache entry", "key", key, "hash", hash)
	return nil
}

// Clear removes all cache entries
func (c *DiskCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
	c.lru = list.New()
	c.currentSize = 0

	if err := os.RemoveAll(c.cacheDir); err != nil {
		return err
	}
	return os.MkdirAll(c.cacheDir, 0755)
}

// Size returns current cache size in bytes
func (c *DiskCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// Len returns the number of cached entries
func (c *DiskCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *DiskCache) decodeLock(url string) *sync.Mutex {
	lock, _ := c.decodeLocks.LoadOrStore(url, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// fetchToTempFile downloads a remote URL to a temporary file.
// Caller must hold the decode lock for this URL.
func (c *DiskCache) fetchToTempFile(ctx context.Context, url string) (string, error) {
	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("deckd-fetch-%s.tmp", hashKey(url)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	c.logger.Debug("downloading", "url", url)
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: HTTP %d", resp.StatusCode)
	}

	tempFile, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	_, err = io.Copy(tempFile, resp.Body)
	tempFile.Close()
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	c.logger.Debug("download complete", "url", url, "path", tempPath)
	return tempPath, nil
}

// EnsureDecoded returns the path of the decoded WAV for url, decoding it
// with decodeFn on a miss. Remote URLs are downloaded first. Concurrent
// calls for the same URL decode once.
func (c *DiskCache) EnsureDecoded(ctx context.Context, url string, decodeFn DecodeFunc) (string, error) {
	cachePath := c.PathForKey(url)

	if c.Contains(url) {
		return cachePath, nil
	}

	lock := c.decodeLock(url)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have finished while we waited
	if c.Contains(url) {
		return cachePath, nil
	}

	sourcePath := decoder.LocalPath(url)
	if decoder.IsRemote(url) {
		tempFile, err := c.fetchToTempFile(ctx, url)
		if err != nil {
			return "", fmt.Errorf("failed to fetch remote URL: %w", err)
		}
		defer os.Remove(tempFile)
		sourcePath = tempFile
	}

	// Decode beside the final path so a crash never leaves a partial entry
	tempPath := cachePath + ".tmp"
	c.logger.Debug("decoding to cache", "source", sourcePath)
	if err := decodeFn(ctx, sourcePath, tempPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to decode: %w", err)
	}
	if err := os.Rename(tempPath, cachePath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to finalize cache file: %w", err)
	}

	if err := c.RegisterFile(url); err != nil {
		c.logger.Warn("failed to register cache file", "url", url, "err", err)
	} else {
		c.logger.Info("cached", "url", url)
	}

	return cachePath, nil
}

// FFmpegDecoder returns a DecodeFunc producing WAV at sampleRate
func FFmpegDecoder(sampleRate int) DecodeFunc {
	return func(ctx context.Context, source, dest string) error {
		_, err := decoder.DecodeToWAVFile(ctx, source, dest, sampleRate)
		return err
	}
}

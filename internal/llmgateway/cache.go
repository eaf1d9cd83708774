package llmgateway

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// embedCacheMagic and embedCacheVersion identify the on-disk format of the
// embedding cache file: magic(4) + version(1) + repeated records of
// [keyLen uint32][key][vecLen uint32][float32...].
const (
	embedCacheMagic   = "ECH1"
	embedCacheVersion = byte(1)
)

// EmbedCache is a filesystem-persisted, content-hash-keyed cache of
// embedding vectors. It is append-friendly: Put appends a new record (the
// file is synced to disk every flushEvery writes and on Close), Load
// replays every record in file order so the latest entry for
// a key wins. A truncated trailing record (crash mid-write) is skipped
// rather than treated as fatal.
type EmbedCache struct {
	mu      sync.RWMutex
	dir     string
	model   string
	entries map[string][]float32
	file    *os.File
	writes  int
}

// flushEvery is how many Puts elapse between fsyncs; buffered OS writes in
// between are cheap and a crash loses at most one flush window of entries.
const flushEvery = 1000

// NewEmbedCache opens (creating if necessary) the embed cache file for the
// given model under dir, e.g. ".cache/embed_cache.<hash-of-model>".
func NewEmbedCache(dir, model string) (*EmbedCache, error) {
	if dir == "" {
		dir = ".cache"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "embed_cache."+cacheFileHash(model))

	entries, err := loadEmbedCacheFile(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	if stat, statErr := f.Stat(); statErr == nil && stat.Size() == 0 {
		if _, err := f.Write([]byte(embedCacheMagic)); err != nil {
			_ = f.Close()
			return nil, err
		}
		if _, err := f.Write([]byte{embedCacheVersion}); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return &EmbedCache{
		dir:     dir,
		model:   model,
		entries: entries,
		file:    f,
	}, nil
}

// Close flushes any buffered writes and releases the underlying file handle.
func (c *EmbedCache) Close() error {
	if c == nil || c.file == nil {
		return nil
	}
	if err := c.file.Sync(); err != nil {
		_ = c.file.Close()
		return err
	}
	return c.file.Close()
}

// Get looks up the cached embedding for text, returning ok=false on miss.
func (c *EmbedCache) Get(text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	key := KeyFor(text)
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put stores vec under text's content-hash key and appends the record to
// the backing file.
func (c *EmbedCache) Put(text string, vec []float32) error {
	if c == nil {
		return nil
	}
	key := KeyFor(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string][]float32)
	}
	c.entries[key] = vec

	if err := appendEmbedCacheRecord(c.file, key, vec); err != nil {
		return err
	}
	c.writes++
	if c.writes%flushEvery == 0 {
		return c.file.Sync()
	}
	return nil
}

// KeyFor computes the content-hash cache key for a piece of text: sha256
// over the whitespace-trimmed text.
func KeyFor(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex16(sum[:])
}

func cacheFileHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex16(sum[:8])
}

func hex16(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0x0f]
	}
	return string(out)
}

func appendEmbedCacheRecord(f *os.File, key string, vec []float32) error {
	if f == nil {
		return errors.New("embed cache: file not open")
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(key)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := f.Write([]byte(key)); err != nil {
		return err
	}

	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(vec)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return err
	}

	valBuf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.BigEndian.PutUint32(valBuf[i*4:], math.Float32bits(v))
	}
	if _, err := f.Write(valBuf); err != nil {
		return err
	}

	return nil
}

// loadEmbedCacheFile replays every complete record in path, tolerating a
// missing file (fresh cache) and a truncated trailing record.
func loadEmbedCacheFile(path string) (map[string][]float32, error) {
	entries := make(map[string][]float32)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	header := make([]byte, len(embedCacheMagic)+1)
	n, _ := io.ReadFull(r, header)
	if n < len(header) {
		// empty or corrupt header; start fresh rather than fail the worker.
		return entries, nil
	}
	if string(header[:len(embedCacheMagic)]) != embedCacheMagic {
		return entries, nil
	}

	for {
		key, vec, ok := readEmbedCacheRecord(r)
		if !ok {
			break
		}
		entries[key] = vec
	}

	return entries, nil
}

func readEmbedCacheRecord(r *bufio.Reader) (string, []float32, bool) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", nil, false
	}
	keyLen := binary.BigEndian.Uint32(lenBuf[:])

	keyBuf := make([]byte, keyLen)
	if _, err := io.ReadFull(r, keyBuf); err != nil {
		return "", nil, false
	}

	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", nil, false
	}
	vecLen := binary.BigEndian.Uint32(lenBuf[:])

	valBuf := make([]byte, 4*vecLen)
	if _, err := io.ReadFull(r, valBuf); err != nil {
		return "", nil, false
	}

	vec := make([]float32, vecLen)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.BigEndian.Uint32(valBuf[i*4:]))
	}

	return string(keyBuf), vec, true
}

package agent

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/mtraver/base91"
)

// scanWarningBufferBytes bounds the hash-failure warning log accumulated
// during a single Scan: a directory tree with many unreadable files (broken
// permissions, files that vanish mid-walk) should not produce an unbounded
// warning blob, just a recent, readable tail of it.
const scanWarningBufferBytes = 4096

// DefaultSourceExtensions is the allow-list of extensions the Scanner includes:
// the runtime's native source extension plus the transpiled extensions named
// in spec §4.1.
var DefaultSourceExtensions = []string{".js", ".coffee", ".es6"}

// FileEntry is one immutable record in the inventory built by Scan.
type FileEntry struct {
	AbsolutePath string
	ByteLength   int64
	LineCount    int32 // used by the Path Resolver to reject a breakpoint set beyond the file's end
	ContentHash  string // base91-encoded sha1 of the file content
	Segments     []string
}

// Inventory is the read-only, post-scan set of candidate source files. It is
// safe for concurrent reads from any number of goroutines; nothing mutates it
// after Scan returns.
type Inventory struct {
	Entries       []FileEntry
	AggregateHash string
}

// Scan performs a single recursive walk of rootDir, hashing and recording
// every file whose extension is in extensions. It is intended to run once at
// startup; the returned Inventory is immutable for the agent's lifetime.
func Scan(rootDir string, extensions []string, logger *log.Logger) (*Inventory, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	extSet := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		extSet[strings.ToLower(e)] = true
	}

	var mu sync.Mutex
	var entries []FileEntry
	seenPath := make(map[string]bool) // path-identity guard: a real file and a symlink resolving to it must count once

	warnBuf := &bytes.Buffer{}
	warnings := newLimitedRollingBufferWriter(warnBuf, scanWarningBufferBytes)

	lwg := NewLimitingWaitGroup(runtime.NumCPU())
	var wg sync.WaitGroup
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil // broken symlink, skip
			}
			if within, err := fileWithinDir(resolved, absRoot); err != nil || !within {
				return nil // symlink escapes the scanned root, never followed
			}
			path = resolved
		}
		if !extSet[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		mu.Lock()
		dup := seenPath[path]
		seenPath[path] = true
		mu.Unlock()
		if dup {
			return nil // already recorded, either walked directly or via another symlink
		}

		lwg.Take()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer lwg.Release()
			entry, err := hashFile(path, absRoot)
			if err != nil {
				// an unreadable file (permissions, removed mid-walk) is not
				// fatal to the whole inventory: note it and move on.
				mu.Lock()
				fmt.Fprintf(warnings, "%s: %v\n", path, err)
				mu.Unlock()
				return
			}
			mu.Lock()
			entries = append(entries, entry)
			mu.Unlock()
		}()
		return nil
	})
	wg.Wait()
	if walkErr != nil {
		return nil, fmt.Errorf("scan %s: %w", absRoot, walkErr)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].AbsolutePath < entries[j].AbsolutePath })

	inv := &Inventory{Entries: entries, AggregateHash: aggregateHash(entries)}
	if logger != nil {
		logger.Printf("scanned %s: %d source files, aggregate hash %s", absRoot, len(entries), inv.AggregateHash)
		if warnBuf.Len() > 0 {
			logger.Printf("%sscan skipped unreadable files:\n%s", ErrorLogPrefix, warnBuf.String())
		}
	}
	return inv, nil
}

// fileWithinDir reports whether filePath resolves inside dirPath. Used to
// keep the scanned inventory bounded to the working directory even when a
// symlink inside it points elsewhere on disk.
func fileWithinDir(filePath, dirPath string) (bool, error) {
	absFile, err := filepath.Abs(filePath)
	if err != nil {
		return false, err
	}
	absDir, err := filepath.Abs(dirPath)
	if err != nil {
		return false, err
	}
	absFile = filepath.Clean(absFile)
	absDir = filepath.Clean(absDir)

	rel, err := filepath.Rel(absDir, absFile)
	if err != nil {
		return false, err
	}
	if strings.HasPrefix(filepath.ToSlash(rel), "../") || rel == ".." {
		return false, nil
	}
	return true, nil
}

func hashFile(path, root string) (FileEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileEntry{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return FileEntry{}, err
	}

	h := sha1.New()
	lc := &lineCounter{}
	if _, err := io.Copy(io.MultiWriter(h, lc), f); err != nil {
		return FileEntry{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")

	return FileEntry{
		AbsolutePath: path,
		ByteLength:   info.Size(),
		LineCount:    lc.lines(),
		ContentHash:  base91.StdEncoding.EncodeToString(h.Sum(nil)),
		Segments:     segments,
	}, nil
}

// lineCounter counts newline-delimited lines as bytes stream through it,
// including a final line that has no trailing newline.
type lineCounter struct {
	count    int64
	lastByte byte
	nonEmpty bool
}

func (lc *lineCounter) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			lc.count++
		}
	}
	if len(p) > 0 {
		lc.nonEmpty = true
		lc.lastByte = p[len(p)-1]
	}
	return len(p), nil
}

func (lc *lineCounter) lines() int32 {
	n := lc.count
	if lc.nonEmpty && lc.lastByte != '\n' {
		n++ // trailing content with no final newline is still a line
	}
	return int32(n)
}

// aggregateHash is deterministic in the set and per-file hashes: entries are
// pre-sorted by path, so the same file set always produces the same digest.
func aggregateHash(entries []FileEntry) string {
	h := sha1.New()
	for _, e := range entries {
		_, _ = h.Write([]byte(e.AbsolutePath))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(e.ContentHash))
		_, _ = h.Write([]byte{0})
	}
	return base91.StdEncoding.EncodeToString(h.Sum(nil))
}

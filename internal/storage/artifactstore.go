package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Fixed artifact names.
const (
	PlanFile      = "plan.yaml"
	LastPatchFile = "last_patch.diff"
)

// ArtifactStoreManager persists plans, patches and run logs as flat files
// under a single artifacts directory. Timestamped artifacts are named with a
// whole-second stamp that strictly increases within and across processes.
type ArtifactStoreManager interface {
	Dir() string
	NextStamp() int64
	SavePlan(text string) (string, error)
	SaveLastPatch(text string) (string, error)
	SavePatch(stamp int64, text string) (string, error)
	SavePatchLog(stamp int64, log string) (string, error)
	SaveRejectLog(stamp int64, log string) (string, error)
	SaveRunOutput(stamp int64, stdout, stderr string) error
	LatestRunError() (string, bool, error)
	ListStamps(prefix, suffix string) ([]int64, error)
}

type fileArtifactStore struct {
	dir   string
	now   func() time.Time
	mu    sync.Mutex
	last  int64
	ready bool
}

// NewArtifactStoreManager creates an ArtifactStoreManager rooted at dir. The
// directory is created on first write.
func NewArtifactStoreManager(dir string) ArtifactStoreManager {
	return newArtifactStore(dir, time.Now)
}

func newArtifactStore(dir string, now func() time.Time) *fileArtifactStore {
	return &fileArtifactStore{dir: dir, now: now}
}

func (s *fileArtifactStore) Dir() string {
	return s.dir
}

// NextStamp returns the current Unix second, bumped past the last stamp this
// store handed out or found on disk, so artifacts never collide even when
// several are written within the same second.
func (s *fileArtifactStore) NextStamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		s.last = s.maxStampOnDisk()
		s.ready = true
	}
	stamp := s.now().Unix()
	if stamp <= s.last {
		stamp = s.last + 1
	}
	s.last = stamp
	return stamp
}

func (s *fileArtifactStore) maxStampOnDisk() int64 {
	var max int64
	for _, prefix := range []string{"patch_", "run_"} {
		stamps, err := s.ListStamps(prefix, "")
		if err != nil {
			continue
		}
		for _, st := range stamps {
			if st > max {
				max = st
			}
		}
	}
	return max
}

// write creates or replaces an artifact and returns its absolute path.
func (s *fileArtifactStore) write(name, text string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifacts directory: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("writing artifact %s: %w", name, err)
	}
	return path, nil
}

func (s *fileArtifactStore) SavePlan(text string) (string, error) {
	return s.write(PlanFile, text)
}

func (s *fileArtifactStore) SaveLastPatch(text string) (string, error) {
	return s.write(LastPatchFile, text)
}

func (s *fileArtifactStore) SavePatch(stamp int64, text string) (string, error) {
	return s.write(fmt.Sprintf("patch_%d.diff", stamp), text)
}

func (s *fileArtifactStore) SavePatchLog(stamp int64, log string) (string, error) {
	return s.write(fmt.Sprintf("patch_%d.log", stamp), log)
}

func (s *fileArtifactStore) SaveRejectLog(stamp int64, log string) (string, error) {
	return s.write(fmt.Sprintf("patch_%d.reject.log", stamp), log)
}

// SaveRunOutput writes run_<stamp>.out and run_<stamp>.err.
func (s *fileArtifactStore) SaveRunOutput(stamp int64, stdout, stderr string) error {
	if _, err := s.write(fmt.Sprintf("run_%d.out", stamp), stdout); err != nil {
		return err
	}
	if _, err := s.write(fmt.Sprintf("run_%d.err", stamp), stderr); err != nil {
		return err
	}
	return nil
}

// LatestRunError returns the content of the run_<stamp>.err file with the
// highest stamp. ok is false when no run has been recorded.
func (s *fileArtifactStore) LatestRunError() (string, bool, error) {
	stamps, err := s.ListStamps("run_", ".err")
	if err != nil {
		return "", false, err
	}
	if len(stamps) == 0 {
		return "", false, nil
	}
	latest := stamps[len(stamps)-1]
	data, err := os.ReadFile(filepath.Join(s.dir, fmt.Sprintf("run_%d.err", latest)))
	if err != nil {
		return "", false, fmt.Errorf("reading run_%d.err: %w", latest, err)
	}
	return string(data), true, nil
}

// ListStamps returns the sorted, deduplicated stamps of artifacts named
// <prefix><stamp><suffix>. An empty suffix matches any extension.
func (s *fileArtifactStore) ListStamps(prefix, suffix string) ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}

	seen := make(map[int64]bool)
	var stamps []int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if suffix != "" {
			if !strings.HasSuffix(rest, suffix) {
				continue
			}
			rest = strings.TrimSuffix(rest, suffix)
		} else if dot := strings.IndexByte(rest, '.'); dot >= 0 {
			rest = rest[:dot]
		}
		stamp, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || seen[stamp] {
			continue
		}
		seen[stamp] = true
		stamps = append(stamps, stamp)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })
	return stamps, nil
}

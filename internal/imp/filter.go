// Package imp implements the bulk enrollment tool pipeline: scan an
// image directory, detect faces and extract features, enroll persons on
// the recognition back-end in batches and persist the rows locally.
//
// The pipeline is three stages wired by queues:
//
//	[files] -> (detect) -> [features] -> (create) -> [created] -> (save)
//
// A stage accountant watches per-stage progress and broadcasts shutdown
// once every stage has consumed everything the previous one produced.
package imp

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const sampleKeep = 10

// FileItem is one accepted image file, numbered in scan order.
type FileItem struct {
	Index int
	Name  string
}

// DirFilter scans a single directory level and keeps the files that
// look like enrollment images: large enough, carrying an allowed
// extension and with a stem the naming pattern can parse.
type DirFilter struct {
	dir     string
	exts    []string
	re      *regexp.Regexp
	sizeMin int64

	// Count is the number of directory entries seen, accepted or not.
	Count   int
	Targets []FileItem

	// GoodSamples and BadSamples hold up to ten file names each for
	// the dry-run report, newest first.
	GoodSamples []string
	BadSamples  []string
}

func NewDirFilter(dir string, exts []string, re *regexp.Regexp, sizeMin int64) *DirFilter {
	return &DirFilter{dir: dir, exts: exts, re: re, sizeMin: sizeMin}
}

// Scan walks the directory once, non-recursively. Subdirectories count
// toward Count but are never accepted.
func (f *DirFilter) Scan() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		f.Count++
		if e.IsDir() {
			f.sampleBad(e.Name())
			continue
		}

		info, err := e.Info()
		if err != nil || info.Size() <= f.sizeMin {
			f.sampleBad(e.Name())
			continue
		}
		if !f.checkExt(e.Name()) || !f.checkStem(e.Name()) {
			f.sampleBad(e.Name())
			continue
		}

		f.sampleGood(e.Name())
		f.Targets = append(f.Targets, FileItem{Index: len(f.Targets), Name: e.Name()})
	}
	return nil
}

// checkExt accepts every extension when the allow-list is empty.
func (f *DirFilter) checkExt(name string) bool {
	if len(f.exts) == 0 {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range f.exts {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

func (f *DirFilter) checkStem(name string) bool {
	return f.re.MatchString(fileStem(name))
}

func (f *DirFilter) sampleGood(name string) {
	if len(f.GoodSamples) < sampleKeep {
		f.GoodSamples = append([]string{name}, f.GoodSamples...)
	}
}

func (f *DirFilter) sampleBad(name string) {
	if len(f.BadSamples) < sampleKeep {
		f.BadSamples = append([]string{name}, f.BadSamples...)
	}
}

func fileStem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

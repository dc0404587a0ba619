// Package msi reads metadata and tables from Windows Installer packages.
package msi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/windowsadmins/msikit/pkg/download"
	"github.com/windowsadmins/msikit/pkg/logging"
	"github.com/windowsadmins/msikit/pkg/retry"
	"github.com/windowsadmins/msikit/pkg/wildcard"
)

// Fetcher downloads a URL to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, outputPath string) (download.Result, error)
}

// ReleasePolicy bounds the wait for the package file to become unlocked
// after the database is closed.
type ReleasePolicy struct {
	Timeout  time.Duration
	Interval time.Duration
	// ForceGC runs a collection before polling so finalizers drop stray handles.
	ForceGC bool
}

// DefaultReleasePolicy polls every 10ms for at most 100ms.
var DefaultReleasePolicy = ReleasePolicy{
	Timeout:  100 * time.Millisecond,
	Interval: 10 * time.Millisecond,
	ForceGC:  true,
}

// Reader reads installer packages through a DatabaseOpener.
type Reader struct {
	Opener  DatabaseOpener
	Fetcher Fetcher
	Release ReleasePolicy

	// probe reports whether the file can be opened for shared read.
	probe func(path string) error
	sleep func(time.Duration)
	now   func() time.Time
}

// NewReader returns a Reader using the default release policy.
func NewReader(opener DatabaseOpener, fetcher Fetcher) *Reader {
	return &Reader{
		Opener:  opener,
		Fetcher: fetcher,
		Release: DefaultReleasePolicy,
		probe:   probeSharedRead,
	}
}

// ReadFile reads the package at path. Property and Feature are always read;
// other tables are read when their name matches one of the include patterns
// (case-sensitive wildcards) and are otherwise present with no rows.
func (r *Reader) ReadFile(ctx context.Context, path string, include []string) (*Info, error) {
	matcher, err := wildcard.Any(include, true)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &InvalidMsiError{Path: path, Err: err}
	}

	logging.Debug("Opening MSI database", "path", path)
	db, err := r.Opener.Open(path)
	if err != nil {
		return nil, &InvalidMsiError{Path: path, Err: err}
	}

	info, readErr := readInfo(db, path, matcher)
	if err := db.Close(); err != nil {
		logging.Warn("Failed to close MSI database", "path", path, "error", err)
	}
	r.waitForRelease(ctx, path)

	if readErr != nil {
		return nil, &InvalidMsiError{Path: path, Err: readErr}
	}
	logging.Debug("Read MSI database", "path", path, "product", info.ProductName, "tables", len(info.TableNames))
	return info, nil
}

// ReadURL downloads rawURL without checksum verification and reads it.
// A download to a temporary location is removed once read.
func (r *Reader) ReadURL(ctx context.Context, rawURL, outputPath string, include []string) (*Info, error) {
	if r.Fetcher == nil {
		return nil, errors.New("msi: no fetcher configured for URL sources")
	}
	res, err := r.Fetcher.Fetch(ctx, rawURL, outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logging.Warn("Failed to remove downloaded package", "path", res.Path, "error", err)
		}
	}()
	return r.ReadFile(ctx, res.Path, include)
}

func readInfo(db Database, path string, include wildcard.Matcher) (*Info, error) {
	tables, err := readTable(db, "_Tables")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	info := &Info{Path: path, Tables: make(map[string][]Record)}
	for _, rec := range tables {
		name, ok := rec.Get("Name")
		if !ok {
			return nil, errors.New("_Tables has no Name column")
		}
		info.TableNames = append(info.TableNames, name)

		if name != PropertyTable && name != FeatureTable && !include.Match(name) {
			info.Tables[name] = []Record{}
			continue
		}
		rows, err := readTable(db, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read table %s: %w", name, err)
		}
		info.Tables[name] = rows
	}
	for _, name := range []string{PropertyTable, FeatureTable} {
		if _, ok := info.Tables[name]; !ok {
			info.Tables[name] = []Record{}
		}
	}

	info.applyProperties()
	return info, nil
}

func readTable(db Database, table string) ([]Record, error) {
	view, err := db.OpenView(tableQuery(table))
	if err != nil {
		return nil, err
	}
	defer view.Close()

	columns, err := view.Columns()
	if err != nil {
		return nil, err
	}
	records := []Record{}
	for {
		row, ok, err := view.Fetch()
		if err != nil {
			return nil, err
		}
		if !ok {
			return records, nil
		}
		records = append(records, Record{Table: table, Columns: columns, Values: row})
	}
}

// waitForRelease polls until the file can be opened again. Running out of
// time is logged and otherwise ignored.
func (r *Reader) waitForRelease(ctx context.Context, path string) {
	if r.Release.ForceGC {
		runtime.GC()
	}
	probe := r.probe
	if probe == nil {
		probe = probeSharedRead
	}

	cfg := retry.Constant(r.Release.Interval, r.Release.Timeout)
	if r.Release.Timeout <= 0 {
		cfg.MaxAttempts = 1
	}
	cfg.Sleep = r.sleep
	cfg.Now = r.now
	err := retry.Do(ctx, cfg, func() error { return probe(path) })
	if err != nil {
		logging.Warn("MSI file still locked after closing database", "path", path,
			"error", fmt.Errorf("%w: %w", ErrReleaseTimeout, err))
	}
}

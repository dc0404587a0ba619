// pkg/logging/sessions.go - per-run history of install decisions for external tools.
//
// Each run gets <dir>/<YYYYMMDD-HHMMSS>/ holding session.json and events.jsonl.

package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

const sessionLayout = "20060102-150405"

// Retention controls which session directories survive a new run.
type Retention struct {
	// Days removes every session older than this many days. Zero keeps all.
	Days int `yaml:"days"`
	// Hours keeps every session younger than this; older ones are thinned to the first of each day.
	Hours int `yaml:"hours"`
}

// Session is the summary written to session.json.
type Session struct {
	SessionID   string           `json:"session_id"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     *time.Time        `json:"end_time,omitempty"`
	RunType     string            `json:"run_type"`
	Status      string           `json:"status"` // running, completed, failed
	Summary     Summary           `json:"summary"`
	Environment map[string]string `json:"environment,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Summary counts what a run did.
type Summary struct {
	Total    int           `json:"total"`
	Installs int           `json:"installs"`
	Repairs  int           `json:"repairs"`
	Skips    int           `json:"skips"`
	Failures int           `json:"failures"`
	Duration time.Duration `json:"duration"`
	Packages []string      `json:"packages"`
}

// Event is one line of events.jsonl.
type Event struct {
	EventID     string    `json:"event_id"`
	SessionID   string    `json:"session_id"`
	Timestamp   time.Time `json:"timestamp"`
	Level       string    `json:"level"`
	Source      string    `json:"source"`
	Package     string    `json:"package,omitempty"`
	ProductCode string    `json:"product_code,omitempty"`
	Action      string    `json:"action"`
	Status      string    `json:"status"` // skipped, planned, completed, failed
	ExitCode    int       `json:"exit_code,omitempty"`
	LogPath     string    `json:"log_path,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// SessionLog records sessions under a base directory.
type SessionLog struct {
	baseDir   string
	retention Retention
	now       func() time.Time

	session    *Session
	events     *os.File
	sessionDir string
}

// NewSessionLog creates baseDir and prunes old sessions according to retention.
func NewSessionLog(baseDir string, retention Retention) (*SessionLog, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	sl := &SessionLog{baseDir: baseDir, retention: retention, now: time.Now}
	if err := sl.prune(); err != nil {
		Warn("Failed to prune old sessions", "dir", baseDir, "error", err)
	}
	return sl, nil
}

// Start opens a new session. Only one session is open at a time.
func (sl *SessionLog) Start(runType string, metadata map[string]string) (string, error) {
	if sl.session != nil {
		return "", errors.New("a session is already open")
	}
	now := sl.now()
	id := now.Format(sessionLayout)
	dir := filepath.Join(sl.baseDir, id)
	// Two runs within the same second share a timestamp; the later one gets a suffix.
	for n := 1; ; n++ {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			break
		}
		id = fmt.Sprintf("%s.%d", now.Format(sessionLayout), n)
		dir = filepath.Join(sl.baseDir, id)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}
	events, err := os.Create(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		return "", fmt.Errorf("failed to create events file: %w", err)
	}

	sl.sessionDir = dir
	sl.events = events
	sl.session = &Session{
		SessionID:   id,
		StartTime:   now,
		RunType:     runType,
		Status:      "running",
		Environment: environment(),
		Metadata:    metadata,
		Summary:     Summary{Packages: []string{}},
	}
	if err := sl.writeSession(); err != nil {
		sl.closeEvents()
		return "", err
	}
	return id, nil
}

// Record appends ev to the open session and updates the summary.
func (sl *SessionLog) Record(ev Event) error {
	if sl.session == nil {
		return errors.New("no open session")
	}
	ev.SessionID = sl.session.SessionID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = sl.now()
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.Level == "" {
		ev.Level = LevelInfo.String()
		if ev.Status == "failed" {
			ev.Level = LevelError.String()
		}
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := sl.events.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	s := &sl.session.Summary
	s.Total++
	switch {
	case ev.Status == "failed":
		s.Failures++
	case ev.Action == "skip":
		s.Skips++
	case ev.Action == "repair":
		s.Repairs++
	case ev.Action == "install":
		s.Installs++
	}
	if ev.Package != "" {
		s.Packages = append(s.Packages, ev.Package)
	}
	return nil
}

// End closes the open session. The status is failed when any event failed.
func (sl *SessionLog) End() (*Session, error) {
	if sl.session == nil {
		return nil, errors.New("no open session")
	}
	now := sl.now()
	sl.session.EndTime = &now
	sl.session.Summary.Duration = now.Sub(sl.session.StartTime)
	sl.session.Status = "completed"
	if sl.session.Summary.Failures > 0 {
		sl.session.Status = "failed"
	}

	err := sl.writeSession()
	if cerr := sl.closeEvents(); err == nil {
		err = cerr
	}
	s := sl.session
	sl.session = nil
	return s, err
}

func (sl *SessionLog) closeEvents() error {
	if sl.events == nil {
		return nil
	}
	err := sl.events.Close()
	sl.events = nil
	return err
}

func (sl *SessionLog) writeSession() error {
	data, err := json.MarshalIndent(sl.session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(filepath.Join(sl.sessionDir, "session.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func environment() map[string]string {
	env := map[string]string{"process_id": fmt.Sprint(os.Getpid())}
	if hostname, err := os.Hostname(); err == nil {
		env["hostname"] = hostname
	}
	for _, name := range []string{"USERNAME", "USERDOMAIN"} {
		if v, ok := os.LookupEnv(name); ok {
			env[name] = v
		}
	}
	return env
}

// Sessions returns the session IDs under the base directory, oldest first.
func (sl *SessionLog) Sessions() ([]string, error) {
	entries, err := os.ReadDir(sl.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if _, ok := sessionTime(e); ok {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Events reads a session's events. Malformed lines are skipped.
// A non-empty status keeps only events with that status.
func (sl *SessionLog) Events(sessionID, status string) ([]Event, error) {
	f, err := os.Open(filepath.Join(sl.baseDir, sessionID, "events.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if status == "" || ev.Status == status {
			events = append(events, ev)
		}
	}
	return events, scanner.Err()
}

func sessionTime(e os.DirEntry) (time.Time, bool) {
	if !e.IsDir() || len(e.Name()) < len(sessionLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(sessionLayout, e.Name()[:len(sessionLayout)], time.Local)
	return t, err == nil
}

// prune removes sessions past Days, and thins sessions past Hours to the first of each day.
func (sl *SessionLog) prune() error {
	if sl.retention.Days <= 0 && sl.retention.Hours <= 0 {
		return nil
	}
	entries, err := os.ReadDir(sl.baseDir)
	if err != nil {
		return err
	}

	type dated struct {
		name string
		at   time.Time
	}
	var sessions []dated
	for _, e := range entries {
		if t, ok := sessionTime(e); ok {
			sessions = append(sessions, dated{e.Name(), t})
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].name < sessions[j].name })

	now := sl.now()
	keptDay := map[string]bool{}
	var errs []error
	for _, s := range sessions {
		age := now.Sub(s.at)
		day := s.at.Format("20060102")
		remove := false
		if sl.retention.Days > 0 && age > time.Duration(sl.retention.Days)*24*time.Hour {
			remove = true
		} else if sl.retention.Hours > 0 && age > time.Duration(sl.retention.Hours)*time.Hour {
			remove = keptDay[day]
		}
		if !remove {
			keptDay[day] = true
			continue
		}
		if err := os.RemoveAll(filepath.Join(sl.baseDir, s.name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

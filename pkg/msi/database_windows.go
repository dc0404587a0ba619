//go:build windows

package msi

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

const (
	sFalse               = 0x00000001
	openDatabaseReadOnly = 0
)

// ColumnInfo selectors.
const (
	columnInfoNames int32 = 0
	columnInfoTypes int32 = 1
)

type comOpener struct{}

// NewOpener returns the Windows Installer COM automation opener.
func NewOpener() DatabaseOpener {
	return comOpener{}
}

// Open pins the calling goroutine to its OS thread until the database is
// closed, as single-threaded apartments require.
func (comOpener) Open(path string) (Database, error) {
	runtime.LockOSThread()
	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != sFalse {
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("failed to initialize COM: %w", err)
		}
	}

	db, err := openDatabase(path)
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, err
	}
	return db, nil
}

func openDatabase(path string) (*comDatabase, error) {
	unknown, err := oleutil.CreateObject("WindowsInstaller.Installer")
	if err != nil {
		return nil, fmt.Errorf("failed to create WindowsInstaller.Installer: %w", err)
	}
	installer, err := unknown.QueryInterface(ole.IID_IDispatch)
	unknown.Release()
	if err != nil {
		return nil, fmt.Errorf("failed to query installer dispatch: %w", err)
	}

	res, err := oleutil.CallMethod(installer, "OpenDatabase", path, int32(openDatabaseReadOnly))
	if err != nil {
		installer.Release()
		return nil, fmt.Errorf("OpenDatabase failed: %w", err)
	}
	db := res.ToIDispatch()
	if db == nil {
		installer.Release()
		return nil, errors.New("OpenDatabase returned no database")
	}
	return &comDatabase{installer: installer, db: db}, nil
}

type comDatabase struct {
	installer *ole.IDispatch
	db        *ole.IDispatch
}

func (d *comDatabase) OpenView(query string) (View, error) {
	res, err := oleutil.CallMethod(d.db, "OpenView", query)
	if err != nil {
		return nil, fmt.Errorf("OpenView %q failed: %w", query, err)
	}
	view := res.ToIDispatch()
	if view == nil {
		return nil, fmt.Errorf("OpenView %q returned no view", query)
	}
	if _, err := oleutil.CallMethod(view, "Execute"); err != nil {
		view.Release()
		return nil, fmt.Errorf("Execute %q failed: %w", query, err)
	}
	v := &comView{view: view}
	if err := v.loadColumns(); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func (d *comDatabase) Close() error {
	d.db.Release()
	d.installer.Release()
	ole.CoUninitialize()
	runtime.UnlockOSThread()
	return nil
}

type comView struct {
	view    *ole.IDispatch
	columns []string
	stream  []bool
}

func (v *comView) loadColumns() error {
	names, err := columnInfo(v.view, columnInfoNames)
	if err != nil {
		return err
	}
	types, err := columnInfo(v.view, columnInfoTypes)
	if err != nil {
		return err
	}
	v.columns = names
	v.stream = make([]bool, len(names))
	for i := range names {
		// Column type codes starting with v are binary streams.
		if i < len(types) && strings.HasPrefix(strings.ToLower(types[i]), "v") {
			v.stream[i] = true
		}
	}
	return nil
}

func columnInfo(view *ole.IDispatch, kind int32) ([]string, error) {
	res, err := oleutil.GetProperty(view, "ColumnInfo", kind)
	if err != nil {
		return nil, fmt.Errorf("ColumnInfo(%d) failed: %w", kind, err)
	}
	rec := res.ToIDispatch()
	if rec == nil {
		return nil, fmt.Errorf("ColumnInfo(%d) returned no record", kind)
	}
	defer rec.Release()
	return recordStrings(rec, nil)
}

// recordStrings reads every field of a record. Fields flagged in skip are
// replaced by StreamPlaceholder.
func recordStrings(rec *ole.IDispatch, skip []bool) ([]string, error) {
	count, err := oleutil.GetProperty(rec, "FieldCount")
	if err != nil {
		return nil, fmt.Errorf("FieldCount failed: %w", err)
	}
	n := int(count.Val)
	values := make([]string, n)
	for i := 0; i < n; i++ {
		if i < len(skip) && skip[i] {
			values[i] = StreamPlaceholder
			continue
		}
		sd, err := oleutil.GetProperty(rec, "StringData", int32(i+1))
		if err != nil {
			return nil, fmt.Errorf("StringData(%d) failed: %w", i+1, err)
		}
		values[i] = sd.ToString()
		sd.Clear()
	}
	return values, nil
}

func (v *comView) Columns() ([]string, error) {
	return v.columns, nil
}

func (v *comView) Fetch() ([]string, bool, error) {
	res, err := oleutil.CallMethod(v.view, "Fetch")
	if err != nil {
		return nil, false, fmt.Errorf("Fetch failed: %w", err)
	}
	rec := res.ToIDispatch()
	if rec == nil {
		return nil, false, nil
	}
	defer rec.Release()
	row, err := recordStrings(rec, v.stream)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

func (v *comView) Close() error {
	_, err := oleutil.CallMethod(v.view, "Close")
	v.view.Release()
	return err
}

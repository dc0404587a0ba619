package msi

// DatabaseOpener opens installer databases read-only.
type DatabaseOpener interface {
	Open(path string) (Database, error)
}

// Database is an open installer database.
type Database interface {
	// OpenView prepares and executes a SQL query.
	OpenView(query string) (View, error)
	Close() error
}

// View is an executed query positioned before its first row.
type View interface {
	// Columns returns the column names of the result set.
	Columns() ([]string, error)
	// Fetch returns the next row with every value rendered as a string.
	// ok is false once the view is exhausted.
	Fetch() (row []string, ok bool, err error)
	Close() error
}

// StreamPlaceholder stands in for binary stream columns, which cannot be read as strings.
const StreamPlaceholder = "[Binary Data]"

func tableQuery(table string) string {
	return "SELECT * FROM `" + table + "`"
}

package models

// StatusEntry represents one line of r4 status output.
type StatusEntry struct {
	Code byte // one of the Status* constants
	Path string
}

// Status codes printed in the first output column.
const (
	StatusUntracked byte = '?' // not under version control
	StatusAdded     byte = 'A' // opened for add
	StatusDeleted   byte = 'D' // opened for delete
	StatusModified  byte = 'M' // opened and differs from the depot
	StatusOpened    byte = 'O' // opened for edit, possibly unchanged
	StatusIgnored   byte = 'I' // matched an ignore pattern (shown with --no-ignore)
)

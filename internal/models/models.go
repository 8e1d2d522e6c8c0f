// Package models defines the data objects shared across r4 packages.
package models

// DepotFile identifies one revision of a file in depot syntax.
type DepotFile struct {
	Path string // depot path, e.g. //depot/project/Makefile
	Rev  int
}

// OpenedFile describes a file opened in the current client workspace.
type OpenedFile struct {
	DepotPath string
	Rev       int
	Action    string // add, edit, delete, branch, integrate
}

// Opened actions reported by p4.
const (
	ActionAdd    = "add"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

//go:build !sqlite_fts5

package fts

const fts5Enabled = false

// Package table contains the tabular dataset model exchanged with the analytics
// API and the normalization rules applied before a table is rendered.
package table

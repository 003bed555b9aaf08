// Package config provides configuration structures and utilities for idscan.
// It defines the main configuration options for probe runs, catalog
// selection, result filtering, and report generation preferences.
package config

// Package config loads the YAML configuration shared by matchview and
// devserver. ${VAR} references in the file are expanded before parsing, and
// PACOSYNC_* environment variables override individual fields afterwards.
package config

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

const (
	debugEnvFile   = ".debug.env"
	releaseEnvFile = ".release.env"
)

// envFileFor selects the dotenv file from the DEBUG variable: "true", "1", or
// "yes" (any case) select the debug file, an unset variable the release file.
//
// Postcondition: Returns an error for any other DEBUG value.
func envFileFor(debug string, set bool) (string, error) {
	if !set {
		return releaseEnvFile, nil
	}
	switch strings.ToLower(debug) {
	case "true", "1", "yes":
		return debugEnvFile, nil
	}
	return "", fmt.Errorf("DEBUG must be one of true, 1, yes or unset, got %q", debug)
}

// loadEnvFile loads the selected dotenv file into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func loadEnvFile(path string) (bool, error) {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading %s: %w", path, err)
	}
	return true, nil
}

package main

import "os"

// fileExists reports whether path exists and is reachable.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

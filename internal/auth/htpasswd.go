// Package auth verifies HTTP basic credentials against an htpasswd file with
// bcrypt hashes. The file is re-read on every check so edits take effect
// without a restart.
package auth

import (
	"bufio"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type Htpasswd struct {
	path string
}

func NewHtpasswd(path string) *Htpasswd {
	return &Htpasswd{path: path}
}

// Verify reports whether the username and password match an entry in the
// file. Malformed lines and non-bcrypt hashes are skipped.
func (h *Htpasswd) Verify(username, password string) bool {
	f, err := os.Open(h.path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		user, hash, ok := strings.Cut(line, ":")
		if !ok || user != username {
			continue
		}
		if !strings.HasPrefix(hash, "$2a$") &&
			!strings.HasPrefix(hash, "$2b$") &&
			!strings.HasPrefix(hash, "$2y$") {
			continue
		}

		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}

	return false
}

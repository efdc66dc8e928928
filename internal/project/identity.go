// Package project computes the stable identity of a (user, workspace) pair
// and the layout of its persistent data directory.
package project

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
)

// Identity uniquely and stably identifies one project: a (user, absolute
// workspace path) pair. Equal inputs always produce an equal ID, across
// process restarts.
type Identity struct {
	UserID        string
	WorkspacePath string // absolute, cleaned
	ID            string // "ragex_" + user_id + "_" + hex16(sha256(user_id+":"+abs_path))
}

// New resolves an Identity from a user id and a workspace path. The path is
// made absolute and cleaned before hashing so that "." and "/abs/." collide.
func New(userID, workspacePath string) (Identity, error) {
	if userID == "" {
		userID = currentUserID()
	}
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve workspace path: %w", err)
	}
	abs = filepath.Clean(abs)

	sum := sha256.Sum256([]byte(userID + ":" + abs))
	id := "ragex_" + userID + "_" + hex.EncodeToString(sum[:])[:16]

	return Identity{UserID: userID, WorkspacePath: abs, ID: id}, nil
}

// currentUserID resolves a user id from DOCKER_USER_ID or the
// OS user, falling back to "unknown" rather than failing identity resolution.
func currentUserID() string {
	if v := os.Getenv("DOCKER_USER_ID"); v != "" {
		return v
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// DataDir returns the per-project data directory under root (the per-user
// data root, default /data): root/projects/<project_id>/.
func (id Identity) DataDir(root string) string {
	return filepath.Join(root, "projects", id.ID)
}

// MetadataPath returns the path of the ProjectMetadata JSON file.
func (id Identity) MetadataPath(root string) string {
	return filepath.Join(id.DataDir(root), "project_info.json")
}

// LegacyModelPath returns the legacy embedding_model.txt sidecar path.
func (id Identity) LegacyModelPath(root string) string {
	return filepath.Join(id.DataDir(root), "embedding_model.txt")
}

// StoreDir returns the vector store's directory (named chroma_db for
// compatibility with earlier layouts).
func (id Identity) StoreDir(root string) string {
	return filepath.Join(id.DataDir(root), "chroma_db")
}

// SocketPath returns the Unix domain socket path for this project's daemon.
func (id Identity) SocketPath(root string) string {
	return filepath.Join(id.DataDir(root), "ragex.sock")
}

// PidfilePath returns the path of the daemon's pidfile/lock.
func (id Identity) PidfilePath(root string) string {
	return filepath.Join(id.DataDir(root), "daemon.pid")
}

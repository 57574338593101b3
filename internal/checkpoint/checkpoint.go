// Package checkpoint implements durable session-state persistence:
// atomic write-then-rename to disk, schema-validated on load, with an
// explicit revision counter bumped on every save.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/andrewfreeman/spectator/pkg/spectator"
)

// schemaJSON constrains a checkpoint document to the shape this package
// requires: a session id, a non-negative revision, and a state object.
// Loaded once into a package-level compiled schema since it never changes
// at runtime.
const schemaJSON = `{
	"type": "object",
	"required": ["session_id", "revision", "updated_ts", "state"],
	"properties": {
		"session_id": {"type": "string", "minLength": 1},
		"revision": {"type": "integer", "minimum": 0},
		"updated_ts": {"type": "number"},
		"state": {"type": "object"},
		"recent_messages": {"type": "array"},
		"trace_tail": {"type": "array"}
	}
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("checkpoint.json", strings.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("checkpoint: compile schema resource: %v", err))
	}
	schema, err := compiler.Compile("checkpoint.json")
	if err != nil {
		panic(fmt.Sprintf("checkpoint: compile schema: %v", err))
	}
	return schema
}

// Store persists checkpoints as one JSON file per session under dir.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. dir is created on first Save if
// it does not already exist.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) pathFor(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".checkpoint.json")
}

// Save writes cp atomically: marshal, write to a .tmp sibling, fsync, then
// rename over the final path. The revision field is incremented before the
// write, matching the explicit "every save bumps revision" rule (the
// Python ancestor left this implicit).
func (s *Store) Save(cp *spectator.Checkpoint) error {
	cp.Revision++

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir: %w", err)
	}

	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	final := s.pathFor(cp.SessionID)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("checkpoint: open tmp: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return fmt.Errorf("checkpoint: write tmp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("checkpoint: fsync tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("checkpoint: close tmp: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

// Load reads and schema-validates the checkpoint for sessionID.
func (s *Store) Load(sessionID string) (*spectator.Checkpoint, error) {
	payload, err := os.ReadFile(s.pathFor(sessionID))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}

	var generic any
	if err := json.Unmarshal(payload, &generic); err != nil {
		return nil, fmt.Errorf("checkpoint: decode: %w", err)
	}
	if err := compiledSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("checkpoint: schema validation: %w", err)
	}

	var cp spectator.Checkpoint
	if err := json.NewDecoder(bytes.NewReader(payload)).Decode(&cp); err != nil {
		return nil, fmt.Errorf("checkpoint: decode: %w", err)
	}
	return &cp, nil
}

// LoadOrCreate loads the checkpoint for sessionID, or returns a fresh one at
// revision 0 if none exists yet.
func (s *Store) LoadOrCreate(sessionID string) (*spectator.Checkpoint, error) {
	cp, err := s.Load(sessionID)
	if err == nil {
		return cp, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return &spectator.Checkpoint{
			SessionID: sessionID,
			State:     spectator.NewSessionState(),
		}, nil
	}
	return nil, err
}

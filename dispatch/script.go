package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
)

// ScriptDispatcher runs `sh <scriptDir>/<name>.<extension>` with the argument JSON
// on stdin and the analyzer's stdout as its JSON result, the Go analog of
// the original's shell-extension dispatch branch. It is a reference
// implementation, not the core contract.
type ScriptDispatcher struct {
	ScriptDir string
}

// Execute implements Dispatcher.
func (d *ScriptDispatcher) Execute(name, extension string, args json.RawMessage) (json.RawMessage, error) {
	script := filepath.Join(d.ScriptDir, name+"."+extension)

	cmd := exec.Command("sh", script)
	cmd.Stdin = bytes.NewReader(args)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg, _ := json.Marshal(map[string]string{"error": stderr.String()})
		return json.RawMessage(msg), fmt.Errorf("dispatch: run %q: %w", script, err)
	}
	return json.RawMessage(stdout.Bytes()), nil
}

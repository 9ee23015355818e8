package producer

import (
	"os/exec"
)

// findRuntime resolves an external collector binary on PATH.
func findRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return "", err
	}
	return binPath, nil
}

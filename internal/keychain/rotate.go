package keychain

import (
	"fmt"
	"os/exec"
	"strings"
)

// Rotate runs a rotation command and saves its output as the item's new
// secret. The command must print the new secret (and only the secret)
// to stdout. If the command fails the stored secret is left untouched.
func Rotate(item *Item, command string) error {
	output, err := runRotationCommand(command)
	if err != nil {
		return fmt.Errorf("rotation command failed: %w", err)
	}
	item.SetSecret([]byte(output))
	if err := item.Save(); err != nil {
		return fmt.Errorf("storing rotated secret: %w", err)
	}
	return nil
}

// runRotationCommand executes a rotation script and captures its stdout.
func runRotationCommand(command string) (string, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), string(exitErr.Stderr))
		}
		return "", err
	}
	return strings.TrimRight(string(output), "\n"), nil
}

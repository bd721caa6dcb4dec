//go:build mage

package main

import (
	"fmt"
	"os/exec"

	"github.com/magefile/mage/sh"
)

// modelImages are the container images the default backends run.
var modelImages = []string{
	"marker:latest",
	"cross-encoder:latest",
}

// Images reports which model images are present in the local container
// runtime (docker, or podman when docker is missing).
func Images() error {
	bin := "docker"
	if _, err := exec.LookPath(bin); err != nil {
		bin = "podman"
	}

	var missing int
	for _, img := range modelImages {
		if err := sh.Run(bin, "image", "inspect", img); err != nil {
			fmt.Printf("  missing  %s\n", img)
			missing++
			continue
		}
		fmt.Printf("  present  %s\n", img)
	}
	if missing > 0 {
		return fmt.Errorf("%d model image(s) missing from %s", missing, bin)
	}
	return nil
}

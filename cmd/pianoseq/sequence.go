package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cbegin/pianoseq-go/internal/config"
)

const exampleSequence = `# Lines starting with # are comments.
# L: is the left hand, R: the right hand. Unlabeled lines are right hand.
# Notes are PITCH:DURATION with w h q e s or a number of beats.
L: C3:h G2:h
R: C4:q E4:q G4:q [C5:h E5:q]
R: Triole:q E4:q D4:q C4:q C4+E4+G4:q rr C5:w
`

func sequencePath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if cfg.SequenceFile != "" {
		return cfg.SequenceFile
	}
	return config.DefaultSequenceFile
}

// readSequence reads path. When the default file is missing an example is
// printed to help write one.
func readSequence(path string, stderr io.Writer) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == config.DefaultSequenceFile {
			fmt.Fprintf(stderr, "%s not found. Create it with something like:\n\n%s\n", path, exampleSequence)
		}
		return "", err
	}
	return string(data), nil
}

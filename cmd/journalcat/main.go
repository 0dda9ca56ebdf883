// Command journalcat prints every record of a journal directory as one JSON
// object per line, oldest first.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"quote-observer/src/journal"
)

func main() {
	dir := flag.String("dir", "data/journal", "journal directory")
	flag.Parse()

	if err := run(*dir, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "journalcat: %v\n", err)
		os.Exit(1)
	}
}

// run copies every readable record to out. Damaged records are reported on
// errOut and skipped; the returned error then lists them.
func run(dir string, out, errOut io.Writer) error {
	r, err := journal.NewReader(dir)
	if err != nil {
		return err
	}
	defer r.Close()

	w := bufio.NewWriter(out)
	defer w.Flush()
	enc := json.NewEncoder(w)

	var damaged []error
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return errors.Join(damaged...)
		}
		if errors.Is(err, journal.ErrCorrupt) {
			fmt.Fprintf(errOut, "journalcat: skipping: %v\n", err)
			damaged = append(damaged, err)
			continue
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
}

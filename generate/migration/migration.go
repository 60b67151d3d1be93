package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	dateFormat     = "20060102150405"
	migrationsPath = "server/store/migrations"
)

var (
	contents = []byte(`-- +migrate Up


-- +migrate Down`)

	validName = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// writeMigrations writes an empty migration called name into every dialect
// directory below dir and returns the files written.
func writeMigrations(dir, name string, now time.Time) ([]string, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("invalid migration name %q: use lower case letters, digits and underscores", name)
	}
	filename := fmt.Sprintf("%s_%s.sql", now.UTC().Format(dateFormat), name)
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name(), filename)
		if err := os.WriteFile(p, contents, 0644); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	if len(written) == 0 {
		return nil, errors.New("no dialect directories found in " + dir)
	}
	return written, nil
}

func main() {
	flag.Usage = func() {
		fmt.Println("Usage: migration <migration name>")
	}
	flag.Parse()
	if len(flag.Args()) != 1 {
		flag.Usage()
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	gitRoot, err := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		log.Fatal(err)
	}
	root := strings.TrimSpace(string(gitRoot))
	files, err := writeMigrations(filepath.Join(root, migrationsPath), flag.Arg(0), time.Now())
	if err != nil {
		log.Fatal(err)
	}
	for _, f := range files {
		fmt.Printf("Wrote empty migration file: %s\n", f)
	}
}

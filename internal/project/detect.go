// Package project infers extension metadata from a destination saltext
// checkout, so the extension name only has to be spelled out when no
// scaffold output exists yet.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrNoProject means no recognizable project metadata was found in the
// destination tree.
var ErrNoProject = errors.New("no saltext project metadata found")

const (
	answersFile   = ".copier-answers.yml"
	pyprojectFile = "pyproject.toml"
	namePrefix    = "saltext."
)

type copierAnswers struct {
	ProjectName string `yaml:"project_name"`
}

type pyproject struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
}

// DetectName returns the extension name of the saltext checkout at root.
// The scaffold answers file wins; the pyproject [project] name with the
// saltext. prefix stripped is the fallback. A present but unreadable file
// is an error, not a fallthrough.
func DetectName(root string) (string, error) {
	name, err := nameFromAnswers(filepath.Join(root, answersFile))
	if err != nil {
		return "", err
	}
	if name != "" {
		return name, nil
	}
	name, err = nameFromPyproject(filepath.Join(root, pyprojectFile))
	if err != nil {
		return "", err
	}
	if name != "" {
		return name, nil
	}
	return "", fmt.Errorf("detect project in %s: %w", root, ErrNoProject)
}

func nameFromAnswers(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read scaffold answers: %w", err)
	}
	var answers copierAnswers
	if err := yaml.Unmarshal(data, &answers); err != nil {
		return "", fmt.Errorf("parse %s: %w", answersFile, err)
	}
	return strings.TrimSpace(answers.ProjectName), nil
}

func nameFromPyproject(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read project manifest: %w", err)
	}
	var proj pyproject
	if err := toml.Unmarshal(data, &proj); err != nil {
		return "", fmt.Errorf("parse %s: %w", pyprojectFile, err)
	}
	return strings.TrimPrefix(strings.TrimSpace(proj.Project.Name), namePrefix), nil
}

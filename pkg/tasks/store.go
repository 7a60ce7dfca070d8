// Package tasks stores named browser tasks and replays them.
package tasks

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/entrhq/medisimple/pkg/plan"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrTaskNotFound is returned for unknown task names.
var ErrTaskNotFound = errors.New("task not found")

// Task is a saved instruction together with the plan that carries it out.
type Task struct {
	Name        string            `json:"name" yaml:"name"`
	URL         string            `json:"url" yaml:"url"`
	Instruction string            `json:"instruction" yaml:"instruction"`
	Actions     []plan.ActionStep `json:"actions" yaml:"actions"`
}

// Validate checks the fields a task needs to run.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("task name is required")
	}
	if strings.TrimSpace(t.URL) == "" {
		return errors.New("task url is required")
	}
	for i, a := range t.Actions {
		if a.Type == "" {
			return errors.Errorf("action %d has no type", i)
		}
	}
	return nil
}

type file struct {
	Tasks []Task `yaml:"tasks"`
}

// Store keeps tasks in a YAML file. The file is read on every call so edits
// made by hand are picked up.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a store backed by path. The file is created on first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Save adds t, replacing any task with the same name.
func (s *Store) Save(t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range tasks {
		if tasks[i].Name == t.Name {
			tasks[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		tasks = append(tasks, t)
	}
	return s.write(tasks)
}

// List returns all tasks ordered by name.
func (s *Store) List() ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })
	return tasks, nil
}

// Get returns the named task.
func (s *Store) Get(name string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return Task{}, err
	}
	for _, t := range tasks {
		if t.Name == name {
			return t, nil
		}
	}
	return Task{}, errors.Wrap(ErrTaskNotFound, name)
}

func (s *Store) load() ([]Task, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []Task{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read tasks file %s", s.path)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parse tasks file %s", s.path)
	}
	if f.Tasks == nil {
		f.Tasks = []Task{}
	}
	return f.Tasks, nil
}

// write replaces the file through a temporary sibling.
func (s *Store) write(tasks []Task) error {
	data, err := yaml.Marshal(file{Tasks: tasks})
	if err != nil {
		return errors.Wrap(err, "encode tasks")
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "create tasks directory")
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "write tasks file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "replace tasks file")
	}
	return nil
}

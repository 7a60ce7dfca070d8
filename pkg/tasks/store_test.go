package tasks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/entrhq/medisimple/pkg/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchTask(name string) Task {
	return Task{
		Name:        name,
		URL:         "https://www.wikipedia.org",
		Instruction: "search for asthma",
		Actions: []plan.ActionStep{
			{Type: plan.StepFill, Selector: "input[name='search']", Value: "asthma"},
			{Type: plan.StepPress, Selector: "input[name='search']", Key: "Enter"},
		},
	}
}

func TestStoreSaveGetList(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nested", "tasks.yaml"))

	list, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, list, "missing file is an empty store")

	require.NoError(t, s.Save(searchTask("zeta")))
	require.NoError(t, s.Save(searchTask("alpha")))

	got, err := s.Get("zeta")
	require.NoError(t, err)
	assert.Equal(t, searchTask("zeta"), got)

	list, err = s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)
}

func TestStoreSaveReplacesByName(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "tasks.yaml"))

	require.NoError(t, s.Save(searchTask("lookup")))
	updated := searchTask("lookup")
	updated.Instruction = "search for flu"
	require.NoError(t, s.Save(updated))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "search for flu", list[0].Instruction)
}

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, NewStore(path).Save(searchTask("lookup")))

	got, err := NewStore(path).Get("lookup")
	require.NoError(t, err)
	assert.Len(t, got.Actions, 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tasks:")
	assert.Contains(t, string(data), "type: fill")
}

func TestStoreGetMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "tasks.yaml"))
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tasks: [unclosed"), 0644))

	_, err := NewStore(path).List()
	assert.Error(t, err)
}

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr string
	}{
		{"valid", func(*Task) {}, ""},
		{"no actions is fine", func(t *Task) { t.Actions = nil }, ""},
		{"missing name", func(t *Task) { t.Name = " " }, "name"},
		{"missing url", func(t *Task) { t.URL = "" }, "url"},
		{"untyped action", func(t *Task) { t.Actions[1].Type = "" }, "action 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := searchTask("x")
			tt.mutate(&task)
			err := task.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

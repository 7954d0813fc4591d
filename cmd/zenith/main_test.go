package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"item=Pizza", "from=Accra", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"item": "Pizza", "from": "Accra", "note": "a=b"}, fields)

	_, err = parseFields([]string{"Pizza"})
	assert.Error(t, err)

	_, err = parseFields([]string{"=Pizza"})
	assert.Error(t, err)
}

func TestKindListNamesEveryTemplate(t *testing.T) {
	list := kindList()
	for _, k := range []string{"fare", "food", "salary", "bill", "charity"} {
		assert.Contains(t, list, k)
	}
}

func TestSchemaCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"schema", "--env-file", ""})

	require.NoError(t, root.Execute())
	assert.Contains(t, strings.ToLower(out.String()), "create table")
}

func TestSummaryCommand_LocalBackend(t *testing.T) {
	t.Setenv("ZENITH_BACKEND", "local")
	t.Setenv("LOCAL_DB_PATH", filepath.Join(t.TempDir(), "zenith.db"))
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"summary", "--range", "all", "--env-file", ""})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"Personal"`)
}

func TestQuickLogCommand_RejectsUnknownKind(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"quicklog", "lottery", "5", "--env-file", ""})

	assert.Error(t, root.Execute())
}

func TestQuickLogCommand_LocalBackend(t *testing.T) {
	t.Setenv("ZENITH_BACKEND", "local")
	t.Setenv("LOCAL_DB_PATH", filepath.Join(t.TempDir(), "zenith.db"))
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"quicklog", "lorry", "3.50", "from=Accra", "to=Kumasi",
		"--date", "2024-05-02", "--env-file", ""})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"description":"Lorry Fare: Accra to Kumasi"`)
	assert.Contains(t, out.String(), `"date":"2024-05-02"`)
}

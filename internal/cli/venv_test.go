package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liangyou/pyvm/internal/venv"
)

func TestVenvCreateCommand(t *testing.T) {
	t.Parallel()

	app, out := newTestApp()
	venvs := &stubVenv{entry: venv.Entry{
		Path:          "/home/u/.pyvm/venvs/web",
		PythonVersion: "3.12.5",
		PythonExe:     "/usr/bin/python3.12",
	}}
	app.Venvs = venvs

	require.NoError(t, runCommand(t, app, "venv", "create", "web", "--python", "3.12.5"))

	assert.Equal(t, []string{"web"}, venvs.created)
	assert.Contains(t, out.String(), `Created virtual environment "web"`)
	assert.Contains(t, out.String(), "source /home/u/.pyvm/venvs/web/bin/activate")
}

func TestVenvCreateCommandFailure(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp()
	app.Venvs = &stubVenv{err: venv.ErrExists}

	err := runCommand(t, app, "venv", "create", "web")
	assert.ErrorIs(t, err, venv.ErrExists)
}

func TestVenvListCommandTable(t *testing.T) {
	t.Parallel()

	app, out := newTestApp()
	app.Venvs = &stubVenv{infos: []venv.Info{
		{Name: "adhoc", Path: "/v/adhoc", PythonVersion: "unknown", Registered: false, Exists: true},
		{Name: "gone", Path: "/v/gone", PythonVersion: "3.11.9", Registered: true, Exists: false},
		{Name: "web", Path: "/v/web", PythonVersion: "3.12.5", Registered: true, Exists: true},
	}}

	require.NoError(t, runCommand(t, app, "venv", "list"))

	text := out.String()
	assert.Contains(t, text, "NAME")
	assert.Contains(t, text, "untracked")
	assert.Contains(t, text, "missing")
	assert.Contains(t, text, "3.12.5")
}

func TestVenvListCommandJSON(t *testing.T) {
	t.Parallel()

	app, out := newTestApp()
	app.Venvs = &stubVenv{infos: []venv.Info{
		{Name: "web", Path: "/v/web", PythonVersion: "3.12.5", Registered: true, Exists: true},
	}}

	require.NoError(t, runCommand(t, app, "venv", "list", "--json"))

	assert.Contains(t, out.String(), `"name": "web"`)
	assert.Contains(t, out.String(), `"python_version": "3.12.5"`)
}

func TestVenvListCommandEmpty(t *testing.T) {
	t.Parallel()

	app, out := newTestApp()
	require.NoError(t, runCommand(t, app, "venv", "list"))
	assert.Contains(t, out.String(), "No virtual environments")
}

func TestVenvRemoveCommand(t *testing.T) {
	t.Parallel()

	app, out := newTestApp()
	venvs := &stubVenv{}
	app.Venvs = venvs

	require.NoError(t, runCommand(t, app, "venv", "remove", "web", "--yes"))

	assert.Equal(t, []string{"web"}, venvs.removed)
	assert.Contains(t, out.String(), `Removed virtual environment "web"`)
}

func TestVenvRemoveCommandUnknown(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp()
	app.Venvs = &stubVenv{err: venv.ErrNotFound}

	err := runCommand(t, app, "venv", "remove", "nope", "--yes")
	assert.ErrorIs(t, err, venv.ErrNotFound)
}

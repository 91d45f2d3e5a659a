package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"open-lovable/internal/config"
)

func collect(events *[]Event) func(Event) error {
	return func(e Event) error {
		*events = append(*events, e)
		return nil
	}
}

func eventTypes(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func TestNormalizePackages(t *testing.T) {
	t.Parallel()
	got := NormalizePackages([]string{" react-router-dom ", "", "axios", "react-router-dom", "  ", "axios"})
	assert.Equal(t, []string{"react-router-dom", "axios"}, got)
	assert.Empty(t, NormalizePackages(nil))
}

func TestParseMarkers(t *testing.T) {
	t.Parallel()
	out := "Already installed: []\nNeed to install: ['axios']\nNEED_INSTALL:[\"axios\"]\n"
	assert.Equal(t, []string{"axios"}, ParseNeedInstall(out, []string{"fallback"}))
	assert.Equal(t, []string{"fallback"}, ParseNeedInstall("nothing here", []string{"fallback"}))
	assert.Empty(t, ParseNeedInstall("NEED_INSTALL:[]", []string{"fallback"}))

	assert.Equal(t, 0, ParseInstallExitCode("added 3 packages\nINSTALL_EXIT_CODE:0"))
	assert.Equal(t, 1, ParseInstallExitCode("ERR!\nINSTALL_EXIT_CODE:1\n"))
	assert.Equal(t, 0, ParseInstallExitCode("no marker"))
}

func TestInstallNewPackages(t *testing.T) {
	runner := &fakeRunner{outputs: []*Execution{
		nil,
		{Stdout: []string{"NEED_INSTALL:[\"axios\"]\n"}},
		{Stdout: []string{"added 1 package\n", "INSTALL_EXIT_CODE:0\n"}},
		nil,
	}}
	inst := NewInstaller(config.PackageConfig{UseLegacyPeerDeps: true, AutoRestartVite: true})

	var events []Event
	err := inst.Install(context.Background(), runner, []string{"axios", "react"}, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, []string{EventStart, EventStatus, EventStatus, EventInfo, EventStatus, EventSuccess}, eventTypes(events))
	assert.Equal(t, "Installing 2 packages...", events[0].Message)
	assert.Equal(t, "Installing 1 new package(s): axios", events[3].Message)
	assert.Equal(t, []string{"axios"}, events[5].InstalledPackages)

	require.Len(t, runner.calls, 4)
	assert.Contains(t, runner.calls[0], "SIGTERM")
	assert.Contains(t, runner.calls[1], `packages_to_check = ["axios","react"]`)
	assert.Contains(t, runner.calls[2], "['--legacy-peer-deps'] + [\"axios\"]")
	assert.Contains(t, runner.calls[3], "npm', 'run', 'dev'")
}

func TestInstallViteRestartError(t *testing.T) {
	runner := &fakeRunner{outputs: []*Execution{
		nil,
		{Stdout: []string{"NEED_INSTALL:[\"axios\"]"}},
		{Stdout: []string{"INSTALL_EXIT_CODE:0\n"}},
		{Error: &ExecutionError{Name: "OSError", Value: "port in use"}},
	}}
	inst := NewInstaller(config.PackageConfig{AutoRestartVite: true})

	var events []Event
	err := inst.Install(context.Background(), runner, []string{"axios"}, collect(&events))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port in use")
	assert.Len(t, runner.calls, 4)
	assert.NotEqual(t, EventSuccess, events[len(events)-1].Type)
}

func TestInstallAlreadyInstalled(t *testing.T) {
	runner := &fakeRunner{outputs: []*Execution{
		nil,
		{Results: []Result{{Text: "NEED_INSTALL:[]"}}},
	}}
	inst := NewInstaller(config.PackageConfig{})

	var events []Event
	err := inst.Install(context.Background(), runner, []string{"react"}, collect(&events))
	require.NoError(t, err)

	last := events[len(events)-1]
	assert.Equal(t, EventSuccess, last.Type)
	assert.Equal(t, "All packages are already installed", last.Message)
	assert.Equal(t, []string{"react"}, last.AlreadyInstalled)
	assert.Equal(t, "Installing 1 package...", events[0].Message)
	assert.Len(t, runner.calls, 2)
}

func TestInstallNonZeroExit(t *testing.T) {
	runner := &fakeRunner{outputs: []*Execution{
		nil,
		{Stdout: []string{"NEED_INSTALL:[\"left-pad-404\"]"}},
		{Stdout: []string{"npm ERR! 404\n", "INSTALL_EXIT_CODE:1\n"}},
	}}
	inst := NewInstaller(config.PackageConfig{AutoRestartVite: true})

	var events []Event
	err := inst.Install(context.Background(), runner, []string{"left-pad-404"}, collect(&events))
	require.Error(t, err)

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, "npm install failed with code 1", last.Message)
	assert.Len(t, runner.calls, 3)
	assert.False(t, strings.Contains(runner.calls[2], "--legacy-peer-deps"))
}

func TestInstallRunnerError(t *testing.T) {
	runner := &fakeRunner{errs: []error{errors.New("sandbox gone")}}
	inst := NewInstaller(config.PackageConfig{})

	var events []Event
	err := inst.Install(context.Background(), runner, []string{"axios"}, collect(&events))
	require.Error(t, err)
	assert.Equal(t, EventError, events[len(events)-1].Type)
	assert.Contains(t, events[len(events)-1].Message, "sandbox gone")
}

func TestSetupScript(t *testing.T) {
	t.Parallel()
	script, err := SetupScript(5173, true)
	require.NoError(t, err)
	assert.Contains(t, script, `root = "/home/user/app"`)
	assert.Contains(t, script, "'--legacy-peer-deps'")
	assert.Contains(t, script, "NPM_INSTALL_EXIT_CODE")

	files := ScaffoldFiles(5173)
	assert.Contains(t, files["vite.config.js"], "port: 5173")
	assert.Contains(t, files["vite.config.js"], "host: '0.0.0.0'")
	assert.Len(t, ScaffoldPaths(5173), len(files))
	assert.Equal(t, "/home/user/app/index.html", ScaffoldPaths(5173)[0])
}

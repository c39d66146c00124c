package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/strataos/installer/internal/config"
)

const sampleConfig = `
name: Sample
variables:
  - name: bridge_port
    description: Port the bridge service listens on
    default: "9100"
global_setup:
  - type: CreateDirectories
    paths:
      - /sdcard/strata
repositories:
  - name: bridge
    owner: acme
    repo: bridge
    version: v1.4.0
    cleanup:
      - type: UninstallPackages
        patterns:
          - "com.acme.bridge*"
      - type: RemoveDirectoriesIfEmpty
        paths:
          - /sdcard/strata
    releaseAssets:
      - "*.apk"
    repoFiles:
      - "configs/*.json"
    installation:
      - type: InstallApks
        priority_order:
          - "*core*"
        allow_failures: true
        exclude_patterns:
          - "*debug*"
      - type: PushFiles
        files:
          - local: "*.json"
            remote: /sdcard/strata/
            chmod: "644"
      - type: GrantPermissions
        grants:
          - package: com.acme.bridge
            permission: android.permission.POST_NOTIFICATIONS
      - type: SetAppOps
        ops:
          - package: com.acme.bridge
            operation: MANAGE_EXTERNAL_STORAGE
            mode: allow
      - type: RunCommand
        command: "setprop bridge.port {{bridge_port}}"
        ignore_failure: true
      - type: SetLauncher
        component: com.acme.bridge/.HomeActivity
      - type: CreateConfig
        path: /sdcard/strata/bridge.json
        content: '{"port": {{bridge_port}}}'
        only_if_missing: true
  - name: extras
    owner: acme
    repo: extras
    optional: true
    reboot_after_completion: true
    cleanup:
      - type: RemoveDirectories
        paths:
          - /sdcard/extras
      - type: RemoveFiles
        paths:
          - /sdcard/extras.lock
    releaseAssets:
      - "extras-*.apk"
    installation:
      - type: InstallApks
        priority_order: []
`

func TestLoad_ParsesEveryStepType(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "Sample", cfg.Name)
	require.Len(t, cfg.Repositories, 2)

	bridge := cfg.Repository("bridge")
	require.NotNil(t, bridge)
	assert.Equal(t, "v1.4.0", bridge.ResolvedVersion())
	require.Len(t, bridge.Installation, 7)

	apks, ok := bridge.Installation[0].Step.(*config.InstallApks)
	require.True(t, ok)
	assert.Equal(t, []string{"*core*"}, apks.PriorityOrder)
	assert.True(t, apks.AllowFailures)
	assert.Equal(t, []string{"*debug*"}, apks.ExcludePatterns)

	push, ok := bridge.Installation[1].Step.(*config.PushFiles)
	require.True(t, ok)
	require.Len(t, push.Files, 1)
	assert.Equal(t, "/sdcard/strata/", push.Files[0].Remote)
	assert.Equal(t, "644", push.Files[0].Chmod)

	create, ok := bridge.Installation[6].Step.(*config.CreateConfig)
	require.True(t, ok)
	assert.True(t, create.OnlyIfMissing)

	require.Len(t, bridge.Cleanup, 2)
	assert.Equal(t, "UninstallPackages", bridge.Cleanup[0].Type())
	assert.Equal(t, "RemoveDirectoriesIfEmpty", bridge.Cleanup[1].Type())

	extras := cfg.Repository("extras")
	require.NotNil(t, extras)
	assert.True(t, extras.Optional)
	assert.True(t, extras.RebootAfterCompletion)
	assert.Equal(t, config.VersionLatest, extras.ResolvedVersion())
}

func TestLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load([]byte(sampleConfig))
	require.NoError(t, err)

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	reparsed, err := config.Load(data)
	require.NoError(t, err)

	assert.Equal(t, cfg, reparsed)
}

func TestLoad_UnknownStepType(t *testing.T) {
	t.Parallel()

	doc := `
name: Bad
repositories:
  - name: bridge
    owner: acme
    repo: bridge
    releaseAssets: ["*.apk"]
    installation:
      - type: FlashPartition
        partition: boot
`

	_, err := config.Load([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown installation step type "FlashPartition"`)
}

func TestLoad_MissingStepType(t *testing.T) {
	t.Parallel()

	doc := `
name: Bad
repositories:
  - name: bridge
    owner: acme
    repo: bridge
    releaseAssets: ["*.apk"]
    installation:
      - paths: [/sdcard/strata]
`

	_, err := config.Load([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a type tag")
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := config.Load([]byte("name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Sample", cfg.Name)
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadBuiltin(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadBuiltin("strata")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Name)
	assert.NotEmpty(t, cfg.Repositories)

	for _, repo := range cfg.Repositories {
		assert.NotEmpty(t, repo.Owner, "repository %s", repo.Name)
		assert.NotEmpty(t, repo.Repo, "repository %s", repo.Name)
	}
}

func TestLoadBuiltin_Unknown(t *testing.T) {
	t.Parallel()

	_, err := config.LoadBuiltin("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown built-in config "nope"`)
}

package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Step is one installation operation. The set of implementations is closed;
// the engine's interpreter type-switches over every variant and treats an
// unknown one as a programming error.
type Step interface {
	stepType() string
}

// CreateDirectories creates each path on the device.
type CreateDirectories struct {
	Paths []string `yaml:"paths"`
}

// InstallApks installs the staged .apk files, ordered by priority patterns.
type InstallApks struct {
	PriorityOrder   []string `yaml:"priority_order"`
	AllowFailures   bool     `yaml:"allow_failures,omitempty"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`
}

// PushFiles pushes staged files to the device.
type PushFiles struct {
	Files []FilePush `yaml:"files"`
}

// GrantPermissions grants runtime permissions.
type GrantPermissions struct {
	Grants []PermissionGrant `yaml:"grants"`
}

// SetAppOps applies app-op modes.
type SetAppOps struct {
	Ops []AppOpGrant `yaml:"ops"`
}

// RunCommand runs a raw shell command on the device.
type RunCommand struct {
	Command       string `yaml:"command"`
	IgnoreFailure bool   `yaml:"ignore_failure,omitempty"`
}

// SetLauncher sets the active home activity.
type SetLauncher struct {
	Component string `yaml:"component"`
}

// CreateConfig writes a config file on the device, optionally only when the
// target does not already exist.
type CreateConfig struct {
	Path          string `yaml:"path"`
	Content       string `yaml:"content"`
	OnlyIfMissing bool   `yaml:"only_if_missing,omitempty"`
}

func (*CreateDirectories) stepType() string { return "CreateDirectories" }
func (*InstallApks) stepType() string       { return "InstallApks" }
func (*PushFiles) stepType() string         { return "PushFiles" }
func (*GrantPermissions) stepType() string  { return "GrantPermissions" }
func (*SetAppOps) stepType() string         { return "SetAppOps" }
func (*RunCommand) stepType() string        { return "RunCommand" }
func (*SetLauncher) stepType() string       { return "SetLauncher" }
func (*CreateConfig) stepType() string      { return "CreateConfig" }

// CleanupOp is one cleanup operation. Like Step, the set is closed.
type CleanupOp interface {
	cleanupType() string
}

// UninstallPackages uninstalls every installed package matching the patterns.
type UninstallPackages struct {
	Patterns []string `yaml:"patterns"`
}

// RemoveDirectories removes each directory recursively.
type RemoveDirectories struct {
	Paths []string `yaml:"paths"`
}

// RemoveDirectoriesIfEmpty removes each directory only when it is empty.
type RemoveDirectoriesIfEmpty struct {
	Paths []string `yaml:"paths"`
}

// RemoveFiles removes each file.
type RemoveFiles struct {
	Paths []string `yaml:"paths"`
}

func (*UninstallPackages) cleanupType() string        { return "UninstallPackages" }
func (*RemoveDirectories) cleanupType() string        { return "RemoveDirectories" }
func (*RemoveDirectoriesIfEmpty) cleanupType() string { return "RemoveDirectoriesIfEmpty" }
func (*RemoveFiles) cleanupType() string              { return "RemoveFiles" }

// InstallStep wraps a Step for YAML (de)serialization. Each document entry is
// a mapping discriminated by its "type" key.
type InstallStep struct {
	Step
}

// Type returns the step's discriminator tag.
func (s InstallStep) Type() string {
	if s.Step == nil {
		return ""
	}

	return s.stepType()
}

// UnmarshalYAML decodes a type-tagged mapping into the matching Step variant.
func (s *InstallStep) UnmarshalYAML(value *yaml.Node) error {
	var tag struct {
		Type string `yaml:"type"`
	}

	if err := value.Decode(&tag); err != nil {
		return fmt.Errorf("decoding step: %w", err)
	}

	var step Step

	switch tag.Type {
	case "CreateDirectories":
		step = &CreateDirectories{}
	case "InstallApks":
		step = &InstallApks{}
	case "PushFiles":
		step = &PushFiles{}
	case "GrantPermissions":
		step = &GrantPermissions{}
	case "SetAppOps":
		step = &SetAppOps{}
	case "RunCommand":
		step = &RunCommand{}
	case "SetLauncher":
		step = &SetLauncher{}
	case "CreateConfig":
		step = &CreateConfig{}
	case "":
		return fmt.Errorf("installation step is missing a type tag (line %d)", value.Line)
	default:
		return fmt.Errorf("unknown installation step type %q (line %d)", tag.Type, value.Line)
	}

	if err := value.Decode(step); err != nil {
		return fmt.Errorf("decoding %s step: %w", tag.Type, err)
	}

	s.Step = step

	return nil
}

// MarshalYAML encodes the step as a mapping with its "type" tag first.
func (s InstallStep) MarshalYAML() (any, error) {
	if s.Step == nil {
		return nil, fmt.Errorf("cannot marshal empty installation step")
	}

	return taggedNode(s.stepType(), s.Step)
}

// CleanupStep wraps a CleanupOp for YAML (de)serialization.
type CleanupStep struct {
	CleanupOp
}

// Type returns the cleanup operation's discriminator tag.
func (s CleanupStep) Type() string {
	if s.CleanupOp == nil {
		return ""
	}

	return s.cleanupType()
}

// UnmarshalYAML decodes a type-tagged mapping into the matching CleanupOp.
func (s *CleanupStep) UnmarshalYAML(value *yaml.Node) error {
	var tag struct {
		Type string `yaml:"type"`
	}

	if err := value.Decode(&tag); err != nil {
		return fmt.Errorf("decoding cleanup step: %w", err)
	}

	var op CleanupOp

	switch tag.Type {
	case "UninstallPackages":
		op = &UninstallPackages{}
	case "RemoveDirectories":
		op = &RemoveDirectories{}
	case "RemoveDirectoriesIfEmpty":
		op = &RemoveDirectoriesIfEmpty{}
	case "RemoveFiles":
		op = &RemoveFiles{}
	case "":
		return fmt.Errorf("cleanup step is missing a type tag (line %d)", value.Line)
	default:
		return fmt.Errorf("unknown cleanup step type %q (line %d)", tag.Type, value.Line)
	}

	if err := value.Decode(op); err != nil {
		return fmt.Errorf("decoding %s step: %w", tag.Type, err)
	}

	s.CleanupOp = op

	return nil
}

// MarshalYAML encodes the cleanup operation as a mapping with its "type" tag.
func (s CleanupStep) MarshalYAML() (any, error) {
	if s.CleanupOp == nil {
		return nil, fmt.Errorf("cannot marshal empty cleanup step")
	}

	return taggedNode(s.cleanupType(), s.CleanupOp)
}

// taggedNode encodes v as a YAML mapping and prepends a "type" entry.
func taggedNode(typeName string, v any) (*yaml.Node, error) {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, err
	}

	key := &yaml.Node{Kind: yaml.ScalarNode, Value: "type"}
	val := &yaml.Node{Kind: yaml.ScalarNode, Value: typeName}
	node.Content = append([]*yaml.Node{key, val}, node.Content...)

	return &node, nil
}

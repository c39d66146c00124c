package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// MissingVariableError reports a required variable that has neither a default
// nor a caller override.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing value for required variable %q", e.Name)
}

// ResolveVariables merges declared defaults with caller overrides into the
// final substitution mapping. Override keys that are not declared variables
// are rejected; a required variable left without a value fails with
// MissingVariableError.
func (c *InstallConfig) ResolveVariables(overrides map[string]string) (map[string]string, error) {
	declared := make(map[string]bool, len(c.Variables))
	for i := range c.Variables {
		declared[c.Variables[i].Name] = true
	}

	for key := range overrides {
		if !declared[key] {
			return nil, fmt.Errorf("unknown variable override %q", key)
		}
	}

	resolved := make(map[string]string, len(c.Variables))

	for i := range c.Variables {
		v := &c.Variables[i]

		if v.Default != nil {
			resolved[v.Name] = *v.Default
		}

		if value, ok := overrides[v.Name]; ok {
			resolved[v.Name] = value
		}

		if _, ok := resolved[v.Name]; !ok && v.Required {
			return nil, &MissingVariableError{Name: v.Name}
		}
	}

	return resolved, nil
}

// ApplyVariables returns a copy of the plan with every {{name}} placeholder
// replaced by its resolved value. The receiver is not modified. References to
// names absent from values are collected across the whole plan and reported
// together in a single error.
func (c *InstallConfig) ApplyVariables(values map[string]string) (*InstallConfig, error) {
	sub := &substituter{values: values, missing: make(map[string]bool)}

	out := &InstallConfig{
		Variables: append([]ConfigVariable(nil), c.Variables...),
	}

	var err error

	out.Name, err = sub.expand(c.Name)
	if err != nil {
		return nil, err
	}

	out.Repositories = make([]Repository, len(c.Repositories))

	for i := range c.Repositories {
		repo, err := sub.repository(&c.Repositories[i])
		if err != nil {
			return nil, err
		}

		out.Repositories[i] = *repo
	}

	out.GlobalSetup = make([]InstallStep, len(c.GlobalSetup))

	for i, step := range c.GlobalSetup {
		replaced, err := sub.step(step.Step)
		if err != nil {
			return nil, err
		}

		out.GlobalSetup[i] = InstallStep{Step: replaced}
	}

	if err := sub.missingErr(); err != nil {
		return nil, err
	}

	return out, nil
}

// substituter walks the plan accumulating undefined placeholder names so they
// can be reported in one pass instead of failing on the first.
type substituter struct {
	values  map[string]string
	missing map[string]bool
}

func (s *substituter) missingErr() error {
	if len(s.missing) == 0 {
		return nil
	}

	names := make([]string, 0, len(s.missing))
	for name := range s.missing {
		names = append(names, name)
	}

	sort.Strings(names)

	var merr *multierror.Error
	for _, name := range names {
		merr = multierror.Append(merr, fmt.Errorf("undefined variable %q", name))
	}

	return fmt.Errorf("substituting variables: %w", merr)
}

// expand replaces {{name}} placeholders in one string. Delimiters are scanned
// left to right and do not nest.
func (s *substituter) expand(input string) (string, error) {
	if !strings.Contains(input, "{{") {
		return input, nil
	}

	var out strings.Builder

	rest := input

	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			break
		}

		out.WriteString(rest[:start])
		rest = rest[start+2:]

		end := strings.Index(rest, "}}")
		if end < 0 {
			return "", fmt.Errorf("unterminated variable placeholder in %q", input)
		}

		name := strings.TrimSpace(rest[:end])
		rest = rest[end+2:]

		if name == "" {
			return "", fmt.Errorf("variable placeholder cannot be empty in %q", input)
		}

		if value, ok := s.values[name]; ok {
			out.WriteString(value)
		} else {
			s.missing[name] = true
		}
	}

	out.WriteString(rest)

	return out.String(), nil
}

func (s *substituter) expandAll(inputs []string) ([]string, error) {
	if inputs == nil {
		return nil, nil
	}

	out := make([]string, len(inputs))

	for i, input := range inputs {
		expanded, err := s.expand(input)
		if err != nil {
			return nil, err
		}

		out[i] = expanded
	}

	return out, nil
}

func (s *substituter) repository(repo *Repository) (*Repository, error) {
	out := *repo
	out.Cleanup = make([]CleanupStep, len(repo.Cleanup))

	for i, step := range repo.Cleanup {
		replaced, err := s.cleanup(step.CleanupOp)
		if err != nil {
			return nil, err
		}

		out.Cleanup[i] = CleanupStep{CleanupOp: replaced}
	}

	out.Installation = make([]InstallStep, len(repo.Installation))

	for i, step := range repo.Installation {
		replaced, err := s.step(step.Step)
		if err != nil {
			return nil, err
		}

		out.Installation[i] = InstallStep{Step: replaced}
	}

	out.ReleaseAssets = append([]string(nil), repo.ReleaseAssets...)
	out.RepoFiles = append([]string(nil), repo.RepoFiles...)

	return &out, nil
}

func (s *substituter) cleanup(op CleanupOp) (CleanupOp, error) {
	switch v := op.(type) {
	case *UninstallPackages:
		patterns, err := s.expandAll(v.Patterns)
		if err != nil {
			return nil, err
		}

		return &UninstallPackages{Patterns: patterns}, nil
	case *RemoveDirectories:
		paths, err := s.expandAll(v.Paths)
		if err != nil {
			return nil, err
		}

		return &RemoveDirectories{Paths: paths}, nil
	case *RemoveDirectoriesIfEmpty:
		paths, err := s.expandAll(v.Paths)
		if err != nil {
			return nil, err
		}

		return &RemoveDirectoriesIfEmpty{Paths: paths}, nil
	case *RemoveFiles:
		paths, err := s.expandAll(v.Paths)
		if err != nil {
			return nil, err
		}

		return &RemoveFiles{Paths: paths}, nil
	default:
		return nil, fmt.Errorf("unhandled cleanup step type %T", op)
	}
}

func (s *substituter) step(step Step) (Step, error) {
	switch v := step.(type) {
	case *CreateDirectories:
		paths, err := s.expandAll(v.Paths)
		if err != nil {
			return nil, err
		}

		return &CreateDirectories{Paths: paths}, nil
	case *InstallApks:
		priority, err := s.expandAll(v.PriorityOrder)
		if err != nil {
			return nil, err
		}

		exclude, err := s.expandAll(v.ExcludePatterns)
		if err != nil {
			return nil, err
		}

		return &InstallApks{
			PriorityOrder:   priority,
			AllowFailures:   v.AllowFailures,
			ExcludePatterns: exclude,
		}, nil
	case *PushFiles:
		files := make([]FilePush, len(v.Files))

		for i, f := range v.Files {
			local, err := s.expand(f.Local)
			if err != nil {
				return nil, err
			}

			remote, err := s.expand(f.Remote)
			if err != nil {
				return nil, err
			}

			chmod, err := s.expand(f.Chmod)
			if err != nil {
				return nil, err
			}

			files[i] = FilePush{Local: local, Remote: remote, Chmod: chmod}
		}

		return &PushFiles{Files: files}, nil
	case *GrantPermissions:
		grants := make([]PermissionGrant, len(v.Grants))

		for i, g := range v.Grants {
			pkg, err := s.expand(g.Package)
			if err != nil {
				return nil, err
			}

			perm, err := s.expand(g.Permission)
			if err != nil {
				return nil, err
			}

			grants[i] = PermissionGrant{Package: pkg, Permission: perm}
		}

		return &GrantPermissions{Grants: grants}, nil
	case *SetAppOps:
		ops := make([]AppOpGrant, len(v.Ops))

		for i, op := range v.Ops {
			pkg, err := s.expand(op.Package)
			if err != nil {
				return nil, err
			}

			operation, err := s.expand(op.Operation)
			if err != nil {
				return nil, err
			}

			mode, err := s.expand(op.Mode)
			if err != nil {
				return nil, err
			}

			ops[i] = AppOpGrant{Package: pkg, Operation: operation, Mode: mode}
		}

		return &SetAppOps{Ops: ops}, nil
	case *RunCommand:
		command, err := s.expand(v.Command)
		if err != nil {
			return nil, err
		}

		return &RunCommand{Command: command, IgnoreFailure: v.IgnoreFailure}, nil
	case *SetLauncher:
		component, err := s.expand(v.Component)
		if err != nil {
			return nil, err
		}

		return &SetLauncher{Component: component}, nil
	case *CreateConfig:
		path, err := s.expand(v.Path)
		if err != nil {
			return nil, err
		}

		content, err := s.expand(v.Content)
		if err != nil {
			return nil, err
		}

		return &CreateConfig{Path: path, Content: content, OnlyIfMissing: v.OnlyIfMissing}, nil
	default:
		return nil, fmt.Errorf("unhandled installation step type %T", step)
	}
}

// Package remote provides one module per transfer protocol. Each module
// runs a single command (list, upload, download, delete) through the
// protocol's plugin.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/eugenetaranov/courier/internal/module"
	"github.com/eugenetaranov/courier/internal/record"
	"github.com/eugenetaranov/courier/internal/task"
	"github.com/eugenetaranov/courier/internal/transfer"
	_ "github.com/eugenetaranov/courier/internal/transfer/ftp"
	_ "github.com/eugenetaranov/courier/internal/transfer/local"
	_ "github.com/eugenetaranov/courier/internal/transfer/sftp"
)

func init() {
	for _, protocol := range transfer.Protocols() {
		module.Register(New(protocol))
	}
}

// Module runs transfer commands for one protocol.
type Module struct {
	protocol string
}

// New creates the module for a registered transfer protocol.
func New(protocol string) *Module {
	return &Module{protocol: protocol}
}

// Name returns the module identifier, which is the protocol name.
func (m *Module) Name() string {
	return m.protocol
}

// params is the decoded form of a transfer task.
type params struct {
	transfer.Config `yaml:",inline"`

	// Command is one of list, upload, download, delete.
	Command string `yaml:"command"`
}

// Run executes the transfer module.
//
// Parameters: every transfer.Config field (server, port, user, password,
// path, private_key_path, ...) plus:
//   - command (string, required): list, upload, download or delete
//
// list adds the files found to the task. The other commands run once per
// selected file and stop at the first failure.
func (m *Module) Run(ctx context.Context, t *task.Task, raw map[string]any) (*module.Result, error) {
	p, err := decode(raw)
	if err != nil {
		return nil, err
	}
	p.Protocol = m.protocol

	switch p.Command {
	case transfer.CommandList, transfer.CommandUpload, transfer.CommandDownload, transfer.CommandDelete:
	case "":
		return nil, fmt.Errorf("required parameter 'command' is missing")
	default:
		return nil, fmt.Errorf("invalid command: %s (must be list, upload, download, or delete)", p.Command)
	}

	plugin, err := transfer.New(p.Config, t)
	if err != nil {
		return nil, err
	}

	if p.Command == transfer.CommandList {
		files, err := plugin.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			t.AddFile(f)
		}
		if len(files) == 0 {
			return module.Unchanged("no files found"), nil
		}
		return module.ChangedWithData(fmt.Sprintf("found %d file(s)", len(files)), map[string]any{
			"count": len(files),
		}), nil
	}

	selected := t.Selected()
	if len(selected) == 0 {
		return nil, fmt.Errorf("command %s requires selected files (set select_files)", p.Command)
	}

	op := operation(plugin, p.Command)
	for _, f := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := op(ctx, f); err != nil {
			return nil, err
		}
	}

	return module.ChangedWithData(fmt.Sprintf("%s: %d file(s)", p.Command, len(selected)), map[string]any{
		"count": len(selected),
	}), nil
}

func operation(p transfer.Plugin, command string) func(ctx context.Context, f *record.File) error {
	switch command {
	case transfer.CommandUpload:
		return p.Upload
	case transfer.CommandDownload:
		return p.Download
	default:
		return p.Delete
	}
}

// decode converts interpolated task parameters into params. Unknown keys
// are rejected.
func decode(raw map[string]any) (*params, error) {
	data, err := yaml.Marshal(coerce(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p params
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	return &p, nil
}

var (
	intFields  = []string{"port", "timeout"}
	boolFields = []string{"always_offer_password", "insecure_skip_verify"}
)

// coerce converts string values of numeric and boolean fields, which is
// what interpolated environment variables produce.
func coerce(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	for _, key := range intFields {
		if s, ok := out[key].(string); ok {
			if n, err := strconv.Atoi(s); err == nil {
				out[key] = n
			}
		}
	}
	for _, key := range boolFields {
		if s, ok := out[key].(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				out[key] = b
			}
		}
	}

	return out
}

// Ensure Module implements the module.Module interface.
var _ module.Module = (*Module)(nil)

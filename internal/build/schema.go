package build

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/pgext-install/internal/logger"
)

// ErrSchemaFailed is returned when the schema command exits with a non-zero status.
var ErrSchemaFailed = errors.New("failed to generate SQL schema")

// SchemaGenerator refreshes the SQL fragments before they are assembled.
type SchemaGenerator interface {
	Generate(ctx context.Context) error
}

// CommandSchemaGenerator runs a configured command in the project directory.
// With no command configured, Generate does nothing.
type CommandSchemaGenerator struct {
	runner Runner
	argv   []string
	dir    string
}

// NewSchemaGenerator splits command on whitespace; quoting is not supported.
func NewSchemaGenerator(runner Runner, command, dir string) *CommandSchemaGenerator {
	return &CommandSchemaGenerator{
		runner: runner,
		argv:   strings.Fields(command),
		dir:    dir,
	}
}

// Generate implements SchemaGenerator.
func (g *CommandSchemaGenerator) Generate(ctx context.Context) error {
	if len(g.argv) == 0 {
		logger.Debug(ctx, "No schema command configured, using SQL files as they are")

		return nil
	}

	cmd := &Command{
		Name: g.argv[0],
		Args: g.argv[1:],
		Dir:  g.dir,
	}

	code, err := g.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("spawn schema command %s: %w", cmd, err)
	}

	if code != 0 {
		return fmt.Errorf("%w: %s exited with status %d", ErrSchemaFailed, cmd.Name, code)
	}

	return nil
}

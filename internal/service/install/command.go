package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/oshokin/pgext-install/internal/artifact"
	"github.com/oshokin/pgext-install/internal/build"
	"github.com/oshokin/pgext-install/internal/config"
	"github.com/oshokin/pgext-install/internal/control"
	"github.com/oshokin/pgext-install/internal/domain/extension"
	"github.com/oshokin/pgext-install/internal/fsutil"
	"github.com/oshokin/pgext-install/internal/layout"
	"github.com/oshokin/pgext-install/internal/loadorder"
	"github.com/oshokin/pgext-install/internal/logger"
	"github.com/oshokin/pgext-install/internal/pgconfig"
	"github.com/oshokin/pgext-install/internal/repository/receipt"
	"github.com/oshokin/pgext-install/internal/sqlscript"
	"github.com/oshokin/pgext-install/internal/version"
)

// Options contains inputs for the install entry point.
// Nil collaborators are replaced by the command-backed implementations.
type Options struct {
	// Config holds resolved settings; Run validates it and fills defaults.
	Config *config.Config
	// Output receives progress lines and the build's stdout (defaults to os.Stdout).
	Output io.Writer
	// Runner starts cargo and the schema command.
	Runner build.Runner
	// Prober answers pg_config queries.
	Prober pgconfig.Prober
	// Schema regenerates SQL fragments before assembly.
	Schema build.SchemaGenerator
	// LoadOrder reads the fragment manifest.
	LoadOrder loadorder.Resolver
	// Receipts stores the install receipt. When nil, a YAML file is written
	// at Config.Receipt if that is set; otherwise no receipt is kept.
	Receipts receipt.Repository
}

// stage names a completed pipeline step, used for logging.
type stage string

const (
	stageBuildInvoked      stage = "build_invoked"
	stageConfigQueried     stage = "config_queried"
	stageArtifactLocated   stage = "artifact_located"
	stageControlFileCopied stage = "control_file_copied"
	stageLibraryCopied     stage = "library_copied"
	stageSchemaGenerated   stage = "schema_generated"
	stageSQLAssembled      stage = "sql_assembled"
	stageUpgradesStaged    stage = "upgrades_staged"
	stageDone              stage = "done"
)

// errOptionsNotSet indicates Run was called without a configuration.
var errOptionsNotSet = errors.New("install options are not set")

// planner carries one install run. It is unexported; callers use Run.
type planner struct {
	// cfg holds validated settings.
	cfg *config.Config
	// profile is derived from cfg.Release.
	profile extension.Profile
	// reporter writes progress lines.
	reporter *Reporter
	// builder runs cargo.
	builder *build.Builder
	// prober answers pg_config queries.
	prober pgconfig.Prober
	// schema regenerates SQL fragments.
	schema build.SchemaGenerator
	// loadOrder reads the fragment manifest.
	loadOrder loadorder.Resolver
	// locator finds the compiled library.
	locator *artifact.Locator
	// assembler writes the versioned script and stages upgrades.
	assembler *sqlscript.Assembler
	// receipts stores the install receipt; nil disables it.
	receipts receipt.Repository
	// written records every installed file for the receipt.
	written []receipt.File
}

// Run builds the extension and installs it under the configured staging root.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "pgext-install")

	if opts == nil || opts.Config == nil {
		return errOptionsNotSet
	}

	if err := config.Validate(opts.Config); err != nil {
		return fmt.Errorf("validate configuration: %w", err)
	}

	return newPlanner(opts).run(ctx)
}

// newPlanner wires collaborators, falling back to the real implementations.
func newPlanner(opts *Options) *planner {
	cfg := opts.Config

	runner := opts.Runner
	if runner == nil {
		runner = build.NewExecRunner(opts.Output, nil)
	}

	prober := opts.Prober
	if prober == nil {
		prober = pgconfig.NewCommandProber(cfg.PgConfig)
	}

	schema := opts.Schema
	if schema == nil {
		schema = build.NewSchemaGenerator(runner, cfg.SchemaCommand, cfg.ProjectDir)
	}

	resolver := opts.LoadOrder
	if resolver == nil {
		resolver = loadorder.FileResolver{}
	}

	receipts := opts.Receipts
	if receipts == nil && cfg.Receipt != "" {
		receipts = receipt.NewFileRepository(cfg.Receipt)
	}

	return &planner{
		cfg:       cfg,
		profile:   extension.ProfileFromRelease(cfg.Release),
		reporter:  NewReporter(opts.Output, cfg.ProjectDir),
		builder:   build.NewBuilder(runner),
		prober:    prober,
		schema:    schema,
		loadOrder: resolver,
		locator:   &artifact.Locator{Strict: cfg.StrictArtifact},
		assembler: sqlscript.NewAssembler(cfg.SQLPath(), cfg.SQLDir),
		receipts:  receipts,
	}
}

// run executes the pipeline. Every step must succeed before the next starts.
//
//nolint:cyclop,funlen // A linear sequence of steps reads best in one place.
func (p *planner) run(ctx context.Context) error {
	controlPath, err := control.Find(p.cfg.ProjectDir)
	if err != nil {
		return err
	}

	controlFile, err := control.Load(controlPath)
	if err != nil {
		return err
	}

	// The version is checked up front so a bad control file fails before the build.
	id, err := controlFile.Identity()
	if err != nil {
		return err
	}

	ctx = logger.WithKV(ctx, "extension", id.Name, "version", id.Version)

	targetDir, err := p.cfg.ResolveTargetDir()
	if err != nil {
		return err
	}

	if p.cfg.Lock {
		release, lockErr := acquireLock(ctx, targetDir)
		if lockErr != nil {
			return lockErr
		}

		defer release()
	}

	if err = p.build(ctx, id); err != nil {
		return err
	}

	p.advance(ctx, stageBuildInvoked)

	p.reporter.Line("")
	p.reporter.Line("installing extension")

	dest, err := p.destination(ctx)
	if err != nil {
		return err
	}

	p.advance(ctx, stageConfigQueried)

	library, err := p.locator.Locate(ctx, targetDir, p.profile, id.Name)
	if err != nil {
		return err
	}

	p.advance(ctx, stageArtifactLocated)

	err = p.copy(ctx, controlPath, filepath.Join(dest.ControlDir, filepath.Base(controlPath)), "control file", receipt.KindControl)
	if err != nil {
		return err
	}

	p.advance(ctx, stageControlFileCopied)

	err = p.copy(ctx, library, filepath.Join(dest.LibraryDir, layout.LibraryFilename(id.Name)), "shared library", receipt.KindLibrary)
	if err != nil {
		return err
	}

	p.advance(ctx, stageLibraryCopied)

	if err = p.schema.Generate(ctx); err != nil {
		return fmt.Errorf("failed to generate SQL schema: %w", err)
	}

	p.advance(ctx, stageSchemaGenerated)

	scriptName := layout.ScriptFilename(id)

	if err = p.assemble(ctx, filepath.Join(dest.ScriptDir, scriptName)); err != nil {
		return err
	}

	p.advance(ctx, stageSQLAssembled)

	if err = p.stageUpgrades(ctx, id, dest.ScriptDir, scriptName); err != nil {
		return err
	}

	p.advance(ctx, stageUpgradesStaged)

	if err = p.saveReceipt(ctx, id); err != nil {
		return err
	}

	p.reporter.Status("Finished", "installing %s", id.Name)
	p.advance(ctx, stageDone)

	return nil
}

// build resolves cargo features and runs the build.
func (p *planner) build(ctx context.Context, id extension.Identity) error {
	var major int

	if p.cfg.Features == nil {
		var err error

		major, err = pgconfig.MajorVersion(ctx, p.prober)
		if err != nil {
			return fmt.Errorf("determine default features: %w", err)
		}
	}

	buildConfig := &build.Config{
		Cargo:      p.cfg.Cargo,
		ProjectDir: p.cfg.ProjectDir,
		Profile:    p.profile,
		Features:   build.ResolveFeatures(p.cfg.Features, major),
		Flags:      p.cfg.Flags,
	}

	p.reporter.Status("Building", "%s with features `%s`", id.Name, buildConfig.Features)
	p.reporter.Line(p.builder.Command(buildConfig).String())

	return p.builder.Build(ctx, buildConfig)
}

// destination asks pg_config for the install directories and rebases them.
func (p *planner) destination(ctx context.Context) (extension.Destination, error) {
	pkgLibDir, err := pgconfig.PkgLibDir(ctx, p.prober)
	if err != nil {
		return extension.Destination{}, err
	}

	extensionDir, err := pgconfig.ExtensionDir(ctx, p.prober)
	if err != nil {
		return extension.Destination{}, err
	}

	dest := layout.Plan(p.cfg.BaseDir, pkgLibDir, extensionDir)

	logger.DebugKV(ctx, "Resolved install destination",
		"library_dir", dest.LibraryDir,
		"extension_dir", dest.ScriptDir)

	return dest, nil
}

// copy installs one file and records it.
func (p *planner) copy(ctx context.Context, src, dest, what, kind string) error {
	p.reporter.Status("Copying", "%s to `%s`", what, p.reporter.Path(dest))
	logger.DebugKV(ctx, "Copying file", "kind", kind, "src", src, "dest", dest)

	if err := fsutil.CopyFile(src, dest); err != nil {
		return err
	}

	p.written = append(p.written, receipt.File{Path: dest, Kind: kind})

	return nil
}

// assemble writes the versioned script from the load order.
func (p *planner) assemble(ctx context.Context, script string) error {
	fragments, err := p.loadOrder.Resolve(p.cfg.LoadOrderPath())
	if err != nil {
		return err
	}

	p.reporter.Status("Writing", "extension schema to `%s`", p.reporter.Path(script))
	logger.DebugKV(ctx, "Assembling extension schema", "fragments", len(fragments), "dest", script)

	if err = p.assembler.Assemble(fragments, script); err != nil {
		return err
	}

	p.written = append(p.written, receipt.File{Path: script, Kind: receipt.KindScript})

	return nil
}

// stageUpgrades copies upgrade scripts next to the generated one.
func (p *planner) stageUpgrades(ctx context.Context, id extension.Identity, destDir, scriptName string) error {
	observe := func(_, dest string) {
		p.reporter.Status("Copying", "extension schema file to `%s`", p.reporter.Path(dest))
	}

	staged, err := p.assembler.StageUpgrades(id.Name, destDir, observe, scriptName)
	for _, dest := range staged {
		p.written = append(p.written, receipt.File{Path: dest, Kind: receipt.KindUpgrade})
	}

	if err != nil {
		return err
	}

	logger.DebugKV(ctx, "Staged upgrade scripts", "count", len(staged))

	return nil
}

// saveReceipt stores the receipt when a repository is configured.
func (p *planner) saveReceipt(ctx context.Context, id extension.Identity) error {
	if p.receipts == nil {
		return nil
	}

	record := &receipt.Receipt{
		Extension:   id.Name,
		Version:     id.Version,
		Profile:     p.profile.String(),
		BaseDir:     p.cfg.BaseDir,
		ToolVersion: version.Short(),
		InstalledAt: time.Now().UTC(),
	}

	for _, file := range p.written {
		if err := record.Add(file.Path, file.Kind); err != nil {
			return err
		}
	}

	if err := p.receipts.Save(ctx, record); err != nil {
		return err
	}

	if p.cfg.Receipt != "" {
		p.reporter.Status("Writing", "install receipt to `%s`", p.reporter.Path(p.cfg.Receipt))
	}

	return nil
}

// advance logs a completed stage.
func (p *planner) advance(ctx context.Context, s stage) {
	logger.DebugKV(ctx, "Install stage completed", "stage", string(s))
}
